package instrument

import (
	"fmt"
	"strconv"
)

// DefaultBinding is the page-side function the hooks report through.
const DefaultBinding = "__qssageReport"

// maxPayload caps how much of each intercepted string crosses to the host.
const maxPayload = 8192

// Script returns the JavaScript installed into every new document before
// page scripts run. eval and atob keep their behaviour: the original is
// always called and its result returned unchanged.
func Script(binding string) string {
	if binding == "" {
		binding = DefaultBinding
	}
	return fmt.Sprintf(hookTemplate, strconv.Quote(binding), maxPayload)
}

const hookTemplate = `(function () {
  var name = %s;
  var limit = %d;
  var report = window[name];
  if (typeof report !== 'function' || window.__qssageHooked) { return; }
  Object.defineProperty(window, '__qssageHooked', { value: true });

  function send(kind, value) {
    try {
      var s = String(value);
      report(JSON.stringify({ kind: kind, length: s.length, payload: s.slice(0, limit) }));
    } catch (e) {}
  }

  var nativeEval = window.eval;
  window.eval = function (code) {
    if (typeof code === 'string') { send('eval', code); }
    return nativeEval.call(window, code);
  };

  var nativeAtob = window.atob;
  window.atob = function (data) {
    var out = nativeAtob.call(window, data);
    send('atob', out);
    return out;
  };
})();`
