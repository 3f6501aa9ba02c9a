package models

type H map[string]interface{}

type BaseResponse struct {
	Status        int         `json:"Status"`
	StatusCode    int         `json:"StatusCode"`
	StatusMessage interface{} `json:"StatusMessage"`
}

// StatusCode values carried in the envelope next to the HTTP status.
const (
	CodeOK           = 0
	CodeFailed       = 1
	CodeUnauthorized = 2
	CodeInsufficient = 3
	CodeRateLimited  = 4
	CodeConflict     = 5
	CodeNotFound     = 6
	CodeForbidden    = 7
)

func NewSuccess(status, statusCode int, msg interface{}) H {
	return H{"Status": status, "StatusCode": statusCode, "StatusMessage": msg}
}

func NewSuccessWithData(status, statusCode int, data interface{}) H {
	return H{"Status": status, "StatusCode": statusCode, "StatusMessage": "Success", "Data": data}
}

func NewErrorResponse(status, statusCode int, msg interface{}) H {
	return H{"Status": status, "StatusCode": statusCode, "StatusMessage": msg}
}

// Page is the offset pagination used by list endpoints.
type Page struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

func NewPage(limit, offset int) Page {
	if limit <= 0 || limit > 100 {
		limit = 25
	}
	if offset < 0 {
		offset = 0
	}
	return Page{Limit: limit, Offset: offset}
}
