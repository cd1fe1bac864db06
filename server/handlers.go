package server

import (
	"encoding/json"
	"html/template"
	"io"
	"net/http"

	"github.com/YuminosukeSato/scitrain/pkg/log"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 10 << 20

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

type healthResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Version string `json:"version"`
}

type predictResponse struct {
	Prediction float64                `json:"prediction"`
	Status     string                 `json:"status"`
	InputData  map[string]interface{} `json:"input_data"`
}

type batchRequest struct {
	Data []map[string]interface{} `json:"data"`
}

type batchResponse struct {
	Predictions []float64 `json:"predictions"`
	Count       int       `json:"count"`
	Status      string    `json:"status"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// decodeBody reads a JSON body into v. An empty body is reported as io.EOF.
func decodeBody(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	return dec.Decode(v)
}

func (s *Server) index(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_ = indexTemplate.Execute(w, nil)
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:  "healthy",
		Message: "the API is running",
		Version: Version,
	})
}

func (s *Server) predict(w http.ResponseWriter, r *http.Request) {
	logger := s.loggerFrom(r)
	var data map[string]interface{}
	if err := decodeBody(r, &data); err != nil || len(data) == 0 {
		writeJSON(w, http.StatusBadRequest, errorResponse{
			Error:   "no data provided",
			Message: "send a non-empty JSON object",
		})
		return
	}

	preds, err := s.predictor.Predict(r.Context(), []map[string]interface{}{data})
	if err != nil {
		logger.Error("Prediction failed", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "prediction failed", Message: err.Error()})
		return
	}
	s.metrics.RecordPredictions(len(preds))
	logger.Info("Prediction served", "prediction", preds[0])
	writeJSON(w, http.StatusOK, predictResponse{Prediction: preds[0], Status: "success", InputData: data})
}

func (s *Server) batchPredict(w http.ResponseWriter, r *http.Request) {
	logger := s.loggerFrom(r)
	var req batchRequest
	if err := decodeBody(r, &req); err != nil || len(req.Data) == 0 {
		writeJSON(w, http.StatusBadRequest, errorResponse{
			Error:   "no data provided",
			Message: `send {"data": [...]} with at least one record`,
		})
		return
	}

	preds, err := s.predictor.Predict(r.Context(), req.Data)
	if err != nil {
		logger.Error("Batch prediction failed", err, log.SamplesKey, len(req.Data))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "batch prediction failed", Message: err.Error()})
		return
	}
	s.metrics.RecordPredictions(len(preds))
	logger.Info("Batch prediction served", log.SamplesKey, len(preds))
	writeJSON(w, http.StatusOK, batchResponse{Predictions: preds, Count: len(preds), Status: "success"})
}

type formPage struct {
	Columns       []string
	HasPrediction bool
	Prediction    float64
	Error         string
}

func (s *Server) renderForm(w http.ResponseWriter, status int, page formPage) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_ = formTemplate.Execute(w, page)
}

func (s *Server) predictFormPage(w http.ResponseWriter, r *http.Request) {
	cols, err := s.predictor.InputColumns(r.Context())
	if err != nil {
		s.loggerFrom(r).Error("Input columns unavailable", err)
		s.renderForm(w, http.StatusInternalServerError, formPage{Error: err.Error()})
		return
	}
	s.renderForm(w, http.StatusOK, formPage{Columns: cols})
}

func (s *Server) predictFormSubmit(w http.ResponseWriter, r *http.Request) {
	logger := s.loggerFrom(r)
	cols, err := s.predictor.InputColumns(r.Context())
	if err != nil {
		logger.Error("Input columns unavailable", err)
		s.renderForm(w, http.StatusInternalServerError, formPage{Error: err.Error()})
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := r.ParseForm(); err != nil {
		s.renderForm(w, http.StatusBadRequest, formPage{Columns: cols, Error: err.Error()})
		return
	}

	record := make(map[string]interface{}, len(cols))
	for _, c := range cols {
		if v := r.PostForm.Get(c); v != "" {
			record[c] = v
		}
	}
	if len(record) == 0 {
		s.renderForm(w, http.StatusBadRequest, formPage{Columns: cols, Error: "fill in at least one field"})
		return
	}

	preds, err := s.predictor.Predict(r.Context(), []map[string]interface{}{record})
	if err != nil {
		logger.Error("Form prediction failed", err)
		s.renderForm(w, http.StatusInternalServerError, formPage{Columns: cols, Error: err.Error()})
		return
	}
	s.metrics.RecordPredictions(len(preds))
	s.renderForm(w, http.StatusOK, formPage{Columns: cols, HasPrediction: true, Prediction: preds[0]})
}

var indexTemplate = template.Must(template.New("index").Parse(`<!DOCTYPE html>
<html>
<head><title>scitrain</title></head>
<body>
<h1>scitrain prediction API</h1>
<ul>
  <li><b>GET /health</b> - service status</li>
  <li><b>POST /predict</b> - predict one JSON record</li>
  <li><b>POST /batch_predict</b> - predict {"data": [...]}</li>
  <li><b><a href="/predict_form">GET /predict_form</a></b> - HTML form</li>
  <li><b>GET /metrics</b> - Prometheus metrics</li>
</ul>
</body>
</html>
`))

var formTemplate = template.Must(template.New("form").Parse(`<!DOCTYPE html>
<html>
<head><title>scitrain prediction</title></head>
<body>
<h1>Prediction form</h1>
{{if .Error}}<p class="error">Error: {{.Error}}</p>{{end}}
{{if .HasPrediction}}<p><b>Prediction:</b> {{printf "%.4f" .Prediction}}</p>{{end}}
<form method="POST" action="/predict_form">
{{range .Columns}}  <label for="{{.}}">{{.}}</label><br>
  <input type="text" id="{{.}}" name="{{.}}"><br><br>
{{end}}  <input type="submit" value="Predict">
</form>
</body>
</html>
`))
