package endpoints

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

type APIResponse struct {
	Status    bool        `json:"success"`
	Value     interface{} `json:"data,omitempty"`
	Error     string      `json:"error,omitempty"`
	ErrorCode int         `json:"error_code"`
	Timestamp int64       `json:"timestamp"`
}

func (res APIResponse) WriteErrorResponse(w http.ResponseWriter, err error) {
	res.WriteErrorResponseWithStatusCode(w, err, http.StatusInternalServerError)
}

func (res APIResponse) WriteErrorResponseWithStatusCode(w http.ResponseWriter, err error, StatusCode int) {
	res.Status = false
	res.Value = nil
	res.Error = err.Error()
	if StatusCode == http.StatusUnauthorized {
		res.ErrorCode = API_UNAUTHORIZED
	} else {
		res.ErrorCode = GetErrorCode(err)
	}
	res.write(w, StatusCode)
}

func (res APIResponse) WriteResultResponse(w http.ResponseWriter, result interface{}) {
	res.WriteResultResponseWithStatusCode(w, result, http.StatusOK)
}

func (res APIResponse) WriteResultResponseWithStatusCode(w http.ResponseWriter, result interface{}, StatusCode int) {
	res.Status = true
	res.Value = result
	res.Error = ""
	res.ErrorCode = GetErrorCode(nil)
	res.write(w, StatusCode)
}

func (res APIResponse) write(w http.ResponseWriter, StatusCode int) {
	res.Timestamp = time.Now().UnixMilli()

	body, err := json.Marshal(res)
	if err != nil {
		StatusCode = http.StatusInternalServerError
		body, _ = json.Marshal(APIResponse{
			Status:    false,
			Error:     fmt.Sprintf("error encoding response: %v", err),
			ErrorCode: API_FAILURE,
			Timestamp: res.Timestamp,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(StatusCode)
	w.Write(body)
}
