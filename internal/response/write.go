package response

import (
	"html/template"
	"net/http"
	"net/url"

	"go.uber.org/zap"

	"github.com/arkeep-io/webauthcore/internal/login"
)

// popupTemplate embeds Payload and CallerOrigin as bare (unquoted) JS
// expression values, never inside an existing quoted string. html/template's
// contextual autoescaper recognizes this as a JS-value position and encodes
// both fields itself (via its own JSON-ish marshaling), correctly escaping
// "</script>" and any other break-out sequence a malicious userData value
// might contain. Do not switch this to string concatenation or to
// template.JS(jsonBytes) — both bypass that escaping.
var popupTemplate = template.Must(template.New("popup").Parse(`<!DOCTYPE html>
<html><head><meta charset="utf-8"><title>Signing in&hellip;</title></head>
<body>
<script>
(function() {
  var payload = {{.Payload}};
  var target = {{.CallerOrigin}};
  if (window.opener) {
    window.opener.postMessage(payload, target);
  }
  window.close();
})();
</script>
</body></html>
`))

type popupData struct {
	Payload      Body
	CallerOrigin string
}

// Write renders result as either a 302 redirect (returnUrl flow) or a popup
// postMessage page (callerOrigin flow), per §4.5's "Return mode" rule.
func Write(w http.ResponseWriter, req *http.Request, logger *zap.Logger, result login.Result) {
	if result.ReturnURL != "" {
		writeRedirect(w, req, result)
		return
	}
	writePopup(w, logger, result.CallerOrigin, BuildBody(result))
}

func writeRedirect(w http.ResponseWriter, req *http.Request, result login.Result) {
	target, err := url.Parse(result.ReturnURL)
	if err != nil {
		http.Error(w, "invalid return url", http.StatusBadRequest)
		return
	}

	if result.IsError() {
		q := target.Query()
		for k, v := range redirectQueryParams(result) {
			q.Set(k, v)
		}
		target.RawQuery = q.Encode()
	}

	http.Redirect(w, req, target.String(), http.StatusFound)
}

func writePopup(w http.ResponseWriter, logger *zap.Logger, callerOrigin string, body Body) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := popupTemplate.Execute(w, popupData{Payload: body, CallerOrigin: callerOrigin}); err != nil {
		logger.Error("response: rendering popup template", zap.Error(err))
	}
}
