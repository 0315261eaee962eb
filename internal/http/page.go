package http

import (
	"bytes"
	"html/template"
	"net/http"

	"go.uber.org/zap"

	"github.com/kjstillabower/portfolio-live-info/internal/widget"
)

// pageTemplate carries only the two display containers. The script polls
// GET /widget and turns clicks into the toggle POSTs.
var pageTemplate = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Live info</title>
</head>
<body>
{{if .ClockEnabled}}<div id="clock" class="live-info">{{range .Snapshot.Clock.Lines}}<div>{{.}}</div>{{end}}</div>{{end}}
{{if .WeatherEnabled}}<div id="weather" class="live-info">{{range .Snapshot.Weather.Lines}}<div>{{.}}</div>{{end}}</div>{{end}}
<script>
(function () {
  function paint(id, region) {
    var el = document.getElementById(id);
    if (!el) { return; }
    el.innerHTML = "";
    region.lines.forEach(function (line) {
      var div = document.createElement("div");
      div.textContent = line;
      el.appendChild(div);
    });
  }
  function apply(snap) {
    paint("clock", snap.clock);
    paint("weather", snap.weather);
  }
  function refresh() {
    fetch("/widget").then(function (r) { return r.json(); }).then(apply).catch(function () {});
  }
  [["clock", "/widget/clock/toggle"], ["weather", "/widget/weather/toggle"]].forEach(function (w) {
    var el = document.getElementById(w[0]);
    if (!el) { return; }
    el.addEventListener("click", function () {
      fetch(w[1], { method: "POST" }).then(function (r) { return r.json(); }).then(apply).catch(function () {});
    });
  });
  setInterval(refresh, {{.PollMillis}});
})();
</script>
</body>
</html>
`))

type pageData struct {
	Snapshot       widget.Snapshot
	ClockEnabled   bool
	WeatherEnabled bool
	PollMillis     int64
}

// GetPage handles GET /. It serves the page with the current region text
// already filled in.
func (h *Handler) GetPage(w http.ResponseWriter, r *http.Request) {
	data := pageData{
		Snapshot:       h.widgets.Snapshot(),
		ClockEnabled:   h.widgets.ClockEnabled(),
		WeatherEnabled: h.widgets.WeatherEnabled(),
		PollMillis:     1000,
	}
	var buf bytes.Buffer
	if err := pageTemplate.Execute(&buf, data); err != nil {
		requestLogger(r, h.logger).Error("render page", zap.Error(err))
		writeError(w, r, http.StatusInternalServerError, "INTERNAL_ERROR", "unable to render page")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}
