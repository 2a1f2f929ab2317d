package gateway

import (
	"encoding/json"
	"net/http"
)

func createResponse(success bool, data interface{}, errorMsg string) ResponseModel {
	return ResponseModel{Success: success, Data: data, Error: errorMsg}
}

// SendResponse writes a 200 envelope when success, else 400.
func SendResponse(w http.ResponseWriter, success bool, data interface{}, errorMsg string) {
	statusCode := http.StatusOK
	if !success {
		statusCode = http.StatusBadRequest
	}
	SendResponseWithHeader(w, success, data, errorMsg, statusCode, nil)
}

// SendResponseWithHeader writes the envelope with an explicit status
// code and additional response headers.
func SendResponseWithHeader(w http.ResponseWriter, success bool, data interface{}, errorMsg string, statusCode int, payloadHeaders map[string]string) {
	response := createResponse(success, data, errorMsg)
	w.Header().Set("Content-Type", "application/json")
	for key, value := range payloadHeaders {
		w.Header().Set(key, value)
	}
	if statusCode == 0 {
		statusCode = http.StatusOK
	}
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, `{"success":false,"error":"internal server error"}`, http.StatusInternalServerError)
	}
}
