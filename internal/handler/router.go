package handler

import (
	"net/http"

	"github.com/gorilla/mux"
)

func NewRouter(students *StudentHandler, uploads *UploadHandler, progress *ProgressHandler) *mux.Router {
	r := mux.NewRouter()
	r.Use(RequestID)

	r.HandleFunc("/", students.Index).Methods(http.MethodGet)
	r.HandleFunc("/add", students.AddStudent).Methods(http.MethodPost)
	r.HandleFunc("/get_student/{id:[0-9]+}", students.GetStudent).Methods(http.MethodGet)
	r.HandleFunc("/edit/{id:[0-9]+}", students.EditStudent).Methods(http.MethodPost)
	r.HandleFunc("/delete/{id:[0-9]+}", students.DeleteStudent).Methods(http.MethodPost)
	r.HandleFunc("/download", students.Download).Methods(http.MethodGet)
	r.HandleFunc("/students", students.ListStudents).Methods(http.MethodGet)

	r.HandleFunc("/upload", uploads.UploadCSV).Methods(http.MethodPost)
	r.HandleFunc("/progress", progress.GetAllProgress).Methods(http.MethodGet)
	r.HandleFunc("/progress/file", progress.GetFileProgress).Methods(http.MethodGet)
	r.HandleFunc("/progress/stream", progress.SSEProgress).Methods(http.MethodGet)

	return r
}
