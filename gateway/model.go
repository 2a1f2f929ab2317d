package gateway

// ResponseModel is the uniform JSON envelope for every gateway route.
type ResponseModel struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}
