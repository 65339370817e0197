package filestore

// Config holds the connection settings for an object storage backend.
type Config struct {
	// Endpoint is the host:port of the storage server, for example
	// "localhost:9000" for a local MinIO.
	Endpoint string

	// AccessKey and SecretKey are S3-style credentials.
	AccessKey string
	SecretKey string

	// UseSSL controls whether TLS is used for the connection.
	UseSSL bool

	// Region is used by region-aware backends; leave empty for MinIO.
	Region string

	// Bucket is the default bucket exports are written to.
	Bucket string
}
