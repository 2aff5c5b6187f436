package clientcli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"
)

// Formatter formats results for output.
type Formatter interface {
	FormatPut(w io.Writer, results []PutResult) error
	FormatGet(w io.Writer, result *GetResult) error
	FormatDelete(w io.Writer, results []DeleteResult) error
	FormatList(w io.Writer, result *ListResult) error
	FormatHealth(w io.Writer, result *HealthResult) error
	FormatError(w io.Writer, err error) error
	FormatProfileList(w io.Writer, profiles []Profile, defaultName string) error
	FormatProfileShow(w io.Writer, profile Profile, isDefault bool) error
}

// NewFormatter returns the appropriate formatter based on flags.
func NewFormatter(jsonOutput, quiet bool) Formatter {
	if jsonOutput {
		return &JSONFormatter{}
	}
	return &HumanFormatter{Quiet: quiet}
}

// HumanFormatter outputs human-readable text.
type HumanFormatter struct {
	Quiet bool
}

// FormatPut formats put results as human-readable text.
func (f *HumanFormatter) FormatPut(w io.Writer, results []PutResult) error {
	for i := range results {
		r := &results[i]
		if r.Err != nil {
			_, _ = fmt.Fprintf(w, "Error: %s - %v\n", r.LocalPath, r.Err)
			continue
		}
		if f.Quiet {
			continue
		}
		verb := "Replaced"
		if r.Created {
			verb = "Created"
		}
		_, _ = fmt.Fprintf(w, "%s: %s (%s)\n", verb, r.Key, formatSize(r.Size))
		_, _ = fmt.Fprintf(w, "  ETag: %s\n", r.ETag)
		if r.Version > 0 {
			_, _ = fmt.Fprintf(w, "  Version: %d\n", r.Version)
		}
	}
	return nil
}

// FormatGet formats get result as human-readable text.
func (f *HumanFormatter) FormatGet(w io.Writer, result *GetResult) error {
	if f.Quiet {
		return nil
	}
	if result.LocalPath == "-" {
		_, _ = fmt.Fprintf(w, "Fetched: %s (%s)\n", result.Key, formatSize(result.Size))
	} else {
		_, _ = fmt.Fprintf(w, "Fetched: %s -> %s (%s)\n", result.Key, result.LocalPath, formatSize(result.Size))
	}
	_, _ = fmt.Fprintf(w, "  ETag: %s\n", result.ETag)
	return nil
}

// FormatDelete formats delete results as human-readable text.
func (f *HumanFormatter) FormatDelete(w io.Writer, results []DeleteResult) error {
	for i := range results {
		r := &results[i]
		if r.Err != nil {
			_, _ = fmt.Fprintf(w, "Error: %s - %v\n", r.Key, r.Err)
			continue
		}
		if !f.Quiet {
			_, _ = fmt.Fprintf(w, "Deleted: %s\n", r.Key)
		}
	}
	return nil
}

// FormatList formats list results as human-readable text.
// Without Items only the keys are printed, one per line.
func (f *HumanFormatter) FormatList(w io.Writer, result *ListResult) error {
	if len(result.Keys) == 0 {
		if !f.Quiet {
			_, _ = fmt.Fprintln(w, "No blobs found")
		}
		return nil
	}

	if result.Items == nil {
		for _, key := range result.Keys {
			_, _ = fmt.Fprintln(w, key)
		}
		return nil
	}

	// Calculate column widths
	maxKeyLen := 3 // "KEY"
	for i := range result.Items {
		if len(result.Items[i].Key) > maxKeyLen {
			maxKeyLen = len(result.Items[i].Key)
		}
	}
	if maxKeyLen > 60 {
		maxKeyLen = 60
	}

	_, _ = fmt.Fprintf(w, "%-*s  %10s  %s\n", maxKeyLen, "KEY", "SIZE", "MODIFIED")
	_, _ = fmt.Fprintf(w, "%s  %s  %s\n", strings.Repeat("-", maxKeyLen), strings.Repeat("-", 10), strings.Repeat("-", 19))

	for i := range result.Items {
		item := &result.Items[i]
		key := item.Key
		if len(key) > maxKeyLen {
			key = key[:maxKeyLen-3] + "..."
		}
		_, _ = fmt.Fprintf(w, "%-*s  %10s  %s\n",
			maxKeyLen,
			key,
			formatSize(item.Size),
			item.ModifiedAt.UTC().Format(time.DateTime),
		)
	}

	if !f.Quiet {
		_, _ = fmt.Fprintf(w, "\n%d blob(s) (%s total)\n", len(result.Items), formatSize(result.TotalSize()))
	}

	return nil
}

// FormatHealth formats a health result as human-readable text.
func (f *HumanFormatter) FormatHealth(w io.Writer, result *HealthResult) error {
	ready := "no"
	if result.Ready {
		ready = "yes"
	}
	_, _ = fmt.Fprintf(w, "Endpoint: %s\n", result.Endpoint)
	_, _ = fmt.Fprintf(w, "Status:   %s\n", result.Status)
	_, _ = fmt.Fprintf(w, "Ready:    %s\n", ready)
	if result.Version != "" {
		_, _ = fmt.Fprintf(w, "Version:  %s\n", result.Version)
	}
	return nil
}

// FormatError formats an error as human-readable text.
func (f *HumanFormatter) FormatError(w io.Writer, err error) error {
	_, _ = fmt.Fprintf(w, "Error: %v\n", err)
	return nil
}

// FormatProfileList formats a list of profiles as human-readable text.
func (f *HumanFormatter) FormatProfileList(w io.Writer, profiles []Profile, defaultName string) error {
	maxNameLen := 4 // "NAME"
	for i := range profiles {
		if len(profiles[i].Name) > maxNameLen {
			maxNameLen = len(profiles[i].Name)
		}
	}
	if maxNameLen > 20 {
		maxNameLen = 20
	}

	_, _ = fmt.Fprintf(w, "  %-*s  %s\n", maxNameLen, "NAME", "ENDPOINT")
	_, _ = fmt.Fprintf(w, "  %s  %s\n", strings.Repeat("-", maxNameLen), strings.Repeat("-", 20))

	for i := range profiles {
		p := &profiles[i]
		marker := " "
		if p.Name == defaultName {
			marker = "*"
		}

		name := p.Name
		if len(name) > maxNameLen {
			name = name[:maxNameLen-3] + "..."
		}

		_, _ = fmt.Fprintf(w, "%s %-*s  %s\n", marker, maxNameLen, name, p.Endpoint)
	}

	return nil
}

// FormatProfileShow formats a single profile as human-readable text.
func (f *HumanFormatter) FormatProfileShow(w io.Writer, profile Profile, isDefault bool) error {
	_, _ = fmt.Fprintf(w, "Name:     %s", profile.Name)
	if isDefault {
		_, _ = fmt.Fprintf(w, " (default)")
	}
	_, _ = fmt.Fprintln(w)
	_, _ = fmt.Fprintf(w, "Endpoint: %s\n", profile.Endpoint)
	return nil
}

// JSONFormatter outputs JSON.
type JSONFormatter struct{}

// FormatPut formats put results as JSON.
func (f *JSONFormatter) FormatPut(w io.Writer, results []PutResult) error {
	type jsonResult struct {
		LocalPath  string `json:"local_path"`
		Key        string `json:"key"`
		Created    bool   `json:"created"`
		ETag       string `json:"etag,omitempty"`
		Size       int64  `json:"size"`
		Version    int64  `json:"version,omitempty"`
		CreatedAt  string `json:"created_at,omitempty"`
		ModifiedAt string `json:"modified_at,omitempty"`
		Error      string `json:"error,omitempty"`
	}

	output := make([]jsonResult, len(results))
	for i := range results {
		r := &results[i]
		jr := jsonResult{
			LocalPath: r.LocalPath,
			Key:       r.Key,
		}
		if r.Err != nil {
			jr.Error = r.Err.Error()
		} else {
			jr.Created = r.Created
			jr.ETag = r.ETag
			jr.Size = r.Size
			jr.Version = r.Version
			jr.CreatedAt = r.CreatedAt.Format(time.RFC3339)
			jr.ModifiedAt = r.ModifiedAt.Format(time.RFC3339)
		}
		output[i] = jr
	}

	return writeJSON(w, output)
}

// FormatGet formats get result as JSON.
func (f *JSONFormatter) FormatGet(w io.Writer, result *GetResult) error {
	return writeJSON(w, result)
}

// FormatDelete formats delete results as JSON.
func (f *JSONFormatter) FormatDelete(w io.Writer, results []DeleteResult) error {
	type jsonResult struct {
		Key     string `json:"key"`
		Deleted bool   `json:"deleted"`
		Error   string `json:"error,omitempty"`
	}

	output := struct {
		Results []jsonResult `json:"results"`
	}{
		Results: make([]jsonResult, len(results)),
	}

	for i, r := range results {
		jr := jsonResult{
			Key:     r.Key,
			Deleted: r.Deleted,
		}
		if r.Err != nil {
			jr.Error = r.Err.Error()
		}
		output.Results[i] = jr
	}

	return writeJSON(w, output)
}

// FormatList formats list results as JSON.
func (f *JSONFormatter) FormatList(w io.Writer, result *ListResult) error {
	if result.Keys == nil {
		cp := *result
		cp.Keys = []string{}
		result = &cp
	}
	return writeJSON(w, result)
}

// FormatHealth formats a health result as JSON.
func (f *JSONFormatter) FormatHealth(w io.Writer, result *HealthResult) error {
	return writeJSON(w, result)
}

// FormatError formats an error as JSON.
func (f *JSONFormatter) FormatError(w io.Writer, err error) error {
	output := struct {
		Error string `json:"error"`
	}{
		Error: err.Error(),
	}
	return writeJSON(w, output)
}

// FormatProfileList formats a list of profiles as JSON.
func (f *JSONFormatter) FormatProfileList(w io.Writer, profiles []Profile, defaultName string) error {
	type jsonProfile struct {
		Name     string `json:"name"`
		Endpoint string `json:"endpoint"`
		Default  bool   `json:"default,omitempty"`
	}

	output := struct {
		Profiles []jsonProfile `json:"profiles"`
	}{
		Profiles: make([]jsonProfile, len(profiles)),
	}

	for i := range profiles {
		output.Profiles[i] = jsonProfile{
			Name:     profiles[i].Name,
			Endpoint: profiles[i].Endpoint,
			Default:  profiles[i].Name == defaultName,
		}
	}

	return writeJSON(w, output)
}

// FormatProfileShow formats a single profile as JSON.
func (f *JSONFormatter) FormatProfileShow(w io.Writer, profile Profile, isDefault bool) error {
	output := struct {
		Name     string `json:"name"`
		Endpoint string `json:"endpoint"`
		Default  bool   `json:"default"`
	}{
		Name:     profile.Name,
		Endpoint: profile.Endpoint,
		Default:  isDefault,
	}
	return writeJSON(w, output)
}

// writeJSON writes a value as indented JSON.
func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// formatSize formats bytes as human-readable size.
func formatSize(bytes int64) string {
	const (
		KB = 1024
		MB = KB * 1024
		GB = MB * 1024
		TB = GB * 1024
	)

	switch {
	case bytes >= TB:
		return fmt.Sprintf("%.1f TB", float64(bytes)/TB)
	case bytes >= GB:
		return fmt.Sprintf("%.1f GB", float64(bytes)/GB)
	case bytes >= MB:
		return fmt.Sprintf("%.1f MB", float64(bytes)/MB)
	case bytes >= KB:
		return fmt.Sprintf("%.1f KB", float64(bytes)/KB)
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}
