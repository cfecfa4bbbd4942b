package http

import (
	"net/http"

	"github.com/go-chi/render"
)

// envelope is the body of every successful JSON response
type envelope struct {
	Status string      `json:"status"`
	Data   interface{} `json:"data"`
}

func respond(w http.ResponseWriter, r *http.Request, status int, data interface{}) {
	render.Status(r, status)
	render.JSON(w, r, envelope{Status: "success", Data: data})
}
