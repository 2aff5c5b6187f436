package clientcli

import (
	"time"
)

// PutOptions configures a put operation.
type PutOptions struct {
	LocalPath string
	Key       string // empty = base name of LocalPath
	Recursive bool
}

// PutResult represents the result of storing a single file.
type PutResult struct {
	LocalPath  string    `json:"local_path"`
	Key        string    `json:"key"`
	Created    bool      `json:"created"`
	ETag       string    `json:"etag"`
	Size       int64     `json:"size"`
	Version    int64     `json:"version"`
	CreatedAt  time.Time `json:"created_at"`
	ModifiedAt time.Time `json:"modified_at"`
	Err        error     `json:"-"` // nil on success
}

// GetOptions configures a get operation.
type GetOptions struct {
	Key       string
	LocalPath string // empty = key in the working directory, "-" = stdout
}

// GetResult represents the result of fetching a blob.
type GetResult struct {
	Key       string `json:"key"`
	LocalPath string `json:"local_path"`
	ETag      string `json:"etag"`
	Size      int64  `json:"size"`
}

// DeleteOptions configures a delete operation.
type DeleteOptions struct {
	Keys []string
}

// DeleteResult represents the result of deleting a single blob.
type DeleteResult struct {
	Key     string `json:"key"`
	Deleted bool   `json:"deleted"`
	Err     error  `json:"-"` // nil on success
}

// ListOptions configures a list operation.
type ListOptions struct {
	// Long fetches size, ETag and modification time of every key.
	Long bool
}

// ListResult contains the stored keys.
type ListResult struct {
	Keys  []string   `json:"keys"`
	Items []BlobInfo `json:"items,omitempty"`
}

// BlobInfo describes a stored blob as reported by the server headers.
type BlobInfo struct {
	Key        string    `json:"key"`
	Size       int64     `json:"size"`
	ETag       string    `json:"etag"`
	Version    int64     `json:"version,omitempty"`
	ModifiedAt time.Time `json:"modified_at"`
}

// HealthResult reports the state of a server.
type HealthResult struct {
	Endpoint string `json:"endpoint"`
	Status   string `json:"status"`
	Ready    bool   `json:"ready"`
	Version  string `json:"version,omitempty"`
}

// serverBlobInfo mirrors the JSON body returned by PUT.
type serverBlobInfo struct {
	Key        string    `json:"key"`
	Size       int64     `json:"size"`
	ETag       string    `json:"etag"`
	Version    int64     `json:"version"`
	CreatedAt  time.Time `json:"created_at"`
	ModifiedAt time.Time `json:"modified_at"`
}

// serverInfo mirrors the JSON body returned by GET /.
type serverInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// serverStatus mirrors the JSON body returned by the health endpoints.
type serverStatus struct {
	Status string `json:"status"`
}
