package models

// AskRequest is the /ask payload.
type AskRequest struct {
	Question string `json:"question"`
}

// AskResponse carries either a plain string answer or an object with an "answer" key.
type AskResponse struct {
	Answer interface{} `json:"answer"`
}
