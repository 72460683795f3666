package config

import "time"

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = "/usr/local/var/docsift/data/db/documents.db"
	}
	if cfg.Storage.FilesPath == "" {
		cfg.Storage.FilesPath = "/usr/local/var/docsift/data/files"
	}
	if cfg.Storage.SearchIndexPath == "" {
		cfg.Storage.SearchIndexPath = "/usr/local/var/docsift/data/indices/bleve"
	}
	if cfg.Queue.Size == 0 {
		cfg.Queue.Size = 256
	}
	if cfg.Queue.Workers == 0 {
		cfg.Queue.Workers = 2
	}
	if cfg.Queue.JobTimeout == 0 {
		cfg.Queue.JobTimeout = Duration(10 * time.Minute)
	}
	if cfg.Pipeline.TesseractBinary == "" {
		cfg.Pipeline.TesseractBinary = "tesseract"
	}
	if cfg.Pipeline.TesseractLang == "" {
		cfg.Pipeline.TesseractLang = "eng"
	}
	if cfg.Ingest.Extensions == nil {
		cfg.Ingest.Extensions = []string{".txt", ".md", ".pdf", ".docx", ".odt", ".rtf", ".xlsx", ".png", ".jpg", ".jpeg", ".gif", ".bmp", ".tiff"}
	}
}
