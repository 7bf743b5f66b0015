package config

import "time"

const (
	// Image store backends
	ImageStoreLocal = "local"
	ImageStoreMinIO = "minio"

	// Telegram limits
	MaxTelegramMessageLen = 4096

	// Longest edge of a stored inspection image, in pixels
	MaxImageEdge = 2048

	// JPEG quality used when normalising uploads
	ImageJPEGQuality = 90

	// Upper bound for downloading an uploaded photo from Telegram
	DownloadTimeout = 30 * time.Second

	// Archive entries shown per page
	SessionsPerPage = 8

	// Report file name offered to the operator
	ReportFileName = "Report.pdf"
)
