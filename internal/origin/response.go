package origin

import (
	"fmt"
	"mime"
	"path/filepath"
)

const htmlContentType = "text/html; charset=utf-8"

var statusText = map[int]string{
	200: "OK",
	400: "Bad Request",
	403: "Forbidden",
	404: "Not Found",
	405: "Method Not Allowed",
	500: "Internal Server Error",
}

// BuildResponse assembles the minimal close-delimited response the
// harness speaks: status line, Content-Length, Content-Type,
// Connection: close, blank line, body.
func BuildResponse(status int, body []byte, contentType string) []byte {
	reason, ok := statusText[status]
	if !ok {
		reason = "OK"
	}

	header := fmt.Sprintf(
		"HTTP/1.1 %d %s\r\nContent-Length: %d\r\nContent-Type: %s\r\nConnection: close\r\n\r\n",
		status, reason, len(body), contentType)

	return append([]byte(header), body...)
}

// ContentType guesses a Content-Type from the file extension
func ContentType(filePath string) string {
	if ctype := mime.TypeByExtension(filepath.Ext(filePath)); ctype != "" {
		return ctype
	}
	return "application/octet-stream"
}
