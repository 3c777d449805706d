package demoserver

import (
	"encoding/json"
	"fmt"
	"html/template"
	"net/http"
	"sort"
	"strconv"
	"sync"

	"github.com/raysh454/qssage/internal/logging"
)

// DemoServer serves a small site whose pages can be flipped between a benign
// and a malicious variant, for scanning end to end against a real browser.
type DemoServer struct {
	cfg      Config
	logger   logging.Logger
	pages    map[string]PageDefinition
	variants map[string]int // path -> current variant
	mu       sync.RWMutex
}

// NewDemoServer creates a new lab server instance.
func NewDemoServer(cfg Config, logger logging.Logger) *DemoServer {
	if cfg.InitialVariant <= 0 {
		cfg.InitialVariant = 1
	}
	if cfg.CollectorHost == "" {
		cfg.CollectorHost = DefaultConfig().CollectorHost
	}

	pageMap := make(map[string]PageDefinition)
	variants := make(map[string]int)
	for _, p := range GetAllPages(cfg.CollectorHost) {
		pageMap[p.Path] = p
		variants[p.Path] = cfg.InitialVariant
	}

	return &DemoServer{
		cfg:      cfg,
		logger:   logging.OrNop(logger),
		pages:    pageMap,
		variants: variants,
	}
}

// Handler returns the lab's routes.
func (s *DemoServer) Handler() http.Handler {
	mux := http.NewServeMux()

	for path := range s.pages {
		p := path
		if p == "/" {
			mux.HandleFunc("/{$}", s.pageHandler(p))
			continue
		}
		mux.HandleFunc(p, s.pageHandler(p))
	}
	mux.HandleFunc("/session", s.sessionHandler)

	mux.HandleFunc("/demo/control", s.controlPanelHandler)
	mux.HandleFunc("/demo/set-variant", s.setVariantHandler)
	mux.HandleFunc("/demo/variants", s.getVariantsHandler)
	mux.HandleFunc("/demo/arm-all", s.armAllHandler)
	mux.HandleFunc("/demo/reset", s.resetHandler)
	return mux
}

// Start listens on the configured port until the server fails.
func (s *DemoServer) Start() error {
	addr := fmt.Sprintf(":%d", s.cfg.Port)
	s.logger.Info("phishing lab listening",
		logging.F("url", "http://localhost"+addr),
		logging.F("control", "http://localhost"+addr+"/demo/control"))
	return http.ListenAndServe(addr, s.Handler())
}

// Variant returns the current variant of path, or 0 if path is not a lab page.
func (s *DemoServer) Variant(path string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.variants[path]
}

// SetVariant switches path to variant v. Unknown paths and variants the page
// does not define are rejected.
func (s *DemoServer) SetVariant(path string, v int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pages[path]
	if !ok {
		return fmt.Errorf("unknown page %q", path)
	}
	if _, ok := p.Variants[v]; !ok {
		return fmt.Errorf("page %q has no variant %d", path, v)
	}
	s.variants[path] = v
	return nil
}

func (s *DemoServer) pageHandler(path string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.RLock()
		def, ok := s.pages[path]
		variant := s.variants[path]
		s.mu.RUnlock()
		if !ok {
			http.NotFound(w, r)
			return
		}

		pv, ok := def.Variants[variant]
		if !ok {
			pv = def.Variants[1]
		}
		for k, v := range pv.Headers {
			w.Header().Set(k, v)
		}
		if pv.Status != 0 && pv.HTML == "" {
			w.WriteHeader(pv.Status)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(pv.HTML))
	}
}

// sessionHandler is the benign login form's target.
func (s *DemoServer) sessionHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(`<!DOCTYPE html><html><body><p>Signed in.</p></body></html>`))
}

type pageInfo struct {
	Path              string `json:"path"`
	Description       string `json:"description"`
	CurrentVariant    int    `json:"current_variant"`
	AvailableVariants []int  `json:"available_variants"`
	Summary           string `json:"summary"`
}

func (s *DemoServer) snapshot() []pageInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	pages := make([]pageInfo, 0, len(s.pages))
	for path, def := range s.pages {
		var vs []int
		for v := range def.Variants {
			vs = append(vs, v)
		}
		sort.Ints(vs)
		cur := s.variants[path]
		pages = append(pages, pageInfo{
			Path:              path,
			Description:       def.Description,
			CurrentVariant:    cur,
			AvailableVariants: vs,
			Summary:           def.Variants[cur].Summary,
		})
	}
	sort.Slice(pages, func(i, j int) bool { return pages[i].Path < pages[j].Path })
	return pages
}

func (s *DemoServer) controlPanelHandler(w http.ResponseWriter, r *http.Request) {
	tmpl := template.Must(template.New("control").Parse(controlPanelHTML))
	data := struct {
		Pages []pageInfo
		Port  int
	}{
		Pages: s.snapshot(),
		Port:  s.cfg.Port,
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_ = tmpl.Execute(w, data)
}

func (s *DemoServer) setVariantHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	path := r.FormValue("path")
	variant, err := strconv.Atoi(r.FormValue("variant"))
	if err != nil {
		http.Error(w, "Invalid variant number", http.StatusBadRequest)
		return
	}
	if err := s.SetVariant(path, variant); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.logger.Info("lab page switched", logging.F("path", path), logging.F("variant", variant))

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"success": true,
		"path":    path,
		"variant": variant,
	})
}

func (s *DemoServer) getVariantsHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(s.snapshot())
}

// armAllHandler switches every page to its highest (most malicious) variant.
func (s *DemoServer) armAllHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.mu.Lock()
	for path, def := range s.pages {
		maxV := 1
		for v := range def.Variants {
			if v > maxV {
				maxV = v
			}
		}
		s.variants[path] = maxV
	}
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"success": true,
		"message": "All pages armed",
	})
}

func (s *DemoServer) resetHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.mu.Lock()
	for path := range s.variants {
		s.variants[path] = 1
	}
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"success": true,
		"message": "All pages reset to variant 1",
	})
}

const controlPanelHTML = `<!DOCTYPE html>
<html>
<head>
    <title>QSSAGE Phishing Lab</title>
    <style>
        body { font-family: system-ui, -apple-system, sans-serif; max-width: 960px; margin: 0 auto; padding: 20px; background: #f5f5f5; }
        table { width: 100%; border-collapse: collapse; background: white; }
        th, td { padding: 8px 12px; border-bottom: 1px solid #ddd; text-align: left; }
        .armed { color: #c0392b; font-weight: bold; }
        button { margin-right: 4px; }
    </style>
</head>
<body>
    <h1>QSSAGE Phishing Lab</h1>
    <p>Scan <code>http://localhost:{{.Port}}/&lt;path&gt;</code> and flip variants below.</p>
    <p>
        <button onclick="post('/demo/arm-all')">Arm all</button>
        <button onclick="post('/demo/reset')">Reset all</button>
    </p>
    <table>
        <tr><th>Path</th><th>Description</th><th>Current</th><th>Variants</th></tr>
        {{range .Pages}}
        <tr>
            <td><a href="{{.Path}}">{{.Path}}</a></td>
            <td>{{.Description}}</td>
            <td class="{{if gt .CurrentVariant 1}}armed{{end}}">{{.CurrentVariant}}: {{.Summary}}</td>
            <td>{{$p := .Path}}{{range .AvailableVariants}}<button onclick="setVariant('{{$p}}', {{.}})">{{.}}</button>{{end}}</td>
        </tr>
        {{end}}
    </table>
    <script>
        function post(url, body) {
            fetch(url, { method: "POST", body: body }).then(function () { location.reload(); });
        }
        function setVariant(path, v) {
            var f = new FormData();
            f.append("path", path);
            f.append("variant", v);
            post("/demo/set-variant", f);
        }
    </script>
</body>
</html>`
