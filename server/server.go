package server

import (
	"crypto/tls"
	"log"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/urfave/negroni"
	"golang.org/x/crypto/acme/autocert"

	"github.com/serisow/docquery/handlers"
	"github.com/serisow/docquery/notify"
	"github.com/serisow/docquery/services/rag_service"
)

type Config struct {
	Domains      []string
	CertCacheDir string
	HTTPPort     string
	HTTPSPort    string
	IdleTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

func SetupRoutes(processor *rag_service.Processor, store rag_service.Store, broker *notify.Broker, logger *slog.Logger) *mux.Router {
	r := mux.NewRouter()

	uploadHandler := handlers.NewUploadHandler(processor, logger)
	processHandler := handlers.NewProcessHandler(processor, logger)
	embeddingsHandler := handlers.NewEmbeddingsHandler(processor, logger)
	queryHandler := handlers.NewQueryHandler(processor, logger)
	documentsHandler := handlers.NewDocumentsHandler(store, broker, logger)

	r.Handle("/documents", uploadHandler).Methods("POST")
	r.HandleFunc("/documents", documentsHandler.List).Methods("GET")
	r.HandleFunc("/documents/events", documentsHandler.Events).Methods("GET")
	r.HandleFunc("/documents/{id}", documentsHandler.Get).Methods("GET")
	r.HandleFunc("/documents/{id}", documentsHandler.Delete).Methods("DELETE")

	r.Handle("/process", processHandler).Methods("POST")
	r.Handle("/embeddings", embeddingsHandler).Methods("POST")
	r.Handle("/query", queryHandler).Methods("POST")

	return r
}

// ServeProduction builds the server when we operate in a production environment.
func ServeProduction(n *negroni.Negroni, cfg Config) {
	autocertManager := autocert.Manager{
		Prompt:     autocert.AcceptTOS,
		HostPolicy: autocert.HostWhitelist(cfg.Domains...),
		Cache:      autocert.DirCache(cfg.CertCacheDir),
	}

	// Listen for HTTP requests on port 80 in a new goroutine. Use
	// autocertManager.HTTPHandler(nil) as the handler. This will send ACME
	// "http-01" challenge responses as necessary, and 302 redirect all other
	// requests to HTTPS.
	go func() {
		srv := &http.Server{
			Addr:         ":80",
			Handler:      autocertManager.HTTPHandler(nil),
			IdleTimeout:  time.Minute,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 10 * time.Second,
		}

		err := srv.ListenAndServe()
		log.Fatal(err)
	}()

	tlsConfig := &tls.Config{
		GetCertificate:           autocertManager.GetCertificate,
		PreferServerCipherSuites: true,
		CurvePreferences:         []tls.CurveID{tls.X25519, tls.CurveP256},
	}

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPSPort,
		Handler:      n,
		TLSConfig:    tlsConfig,
		IdleTimeout:  time.Minute,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	err := srv.ListenAndServeTLS("", "") // Key and cert provided automatically by autocert.
	log.Fatal(err)
}

// ServeDevelopment starts the server when we operate in a dev environment.
func ServeDevelopment(s *http.Server) {
	log.Fatal(s.ListenAndServe())
}
