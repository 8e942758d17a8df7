package pipeline

// Source types recorded on import logs.
const (
	SourceUpload = "upload"
	SourceGCS    = "gcs"
	SourceS3     = "s3"
	SourceFile   = "file"
)

// MaxErrorMessageLength caps the fatal error text stored on a failed import log.
const MaxErrorMessageLength = 2000
