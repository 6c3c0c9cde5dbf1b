package storage

import (
	"mime"
	"net/http"
	"path"
	"strings"
)

// yamlContentType is missing from the mime tables of most systems.
const yamlContentType = "application/yaml"

// contentTypeFor picks a content type from the key's extension, sniffing
// data only when the extension is unknown.
func contentTypeFor(key string, data []byte) string {
	switch ext := strings.ToLower(path.Ext(key)); ext {
	case ".yaml", ".yml":
		return yamlContentType
	case "":
	default:
		if ct := mime.TypeByExtension(ext); ct != "" {
			return ct
		}
	}
	if len(data) > 0 {
		return http.DetectContentType(data)
	}
	return "application/octet-stream"
}
