// Package naming provides the naming conventions shared by the image
// actions and the CLI: driver identities, file server URLs, download
// locations and ISO volume labels.
package naming

import (
	"fmt"
	"net"
	"net/url"
	"path"
	"path/filepath"
	"strconv"
	"strings"
)

// DriverScheme prefixes every connection identity.
const DriverScheme = "opennebula"

// DriverURL returns the connection identity for an XML-RPC endpoint.
//
// Example: http://one:2633/RPC2 → opennebula:http://one:2633/RPC2
func DriverURL(endpoint string) string {
	return DriverScheme + ":" + strings.TrimSpace(endpoint)
}

// ServedURL returns the URL a local file is served at.
// Only the base name of filePath is used.
//
// Example: (10.0.0.5, 8066, /data/debian.qcow2) → http://10.0.0.5:8066/debian.qcow2
func ServedURL(host string, port int, filePath string) string {
	u := url.URL{
		Scheme: "http",
		Host:   net.JoinHostPort(host, strconv.Itoa(port)),
		Path:   "/" + filepath.Base(filePath),
	}
	return u.String()
}

// SourceURL returns where an image's backing file is published under the
// download base. Only the last two elements of source are used.
//
// Example: (http://one/download/, /var/lib/one/datastores/1/abc) → http://one/download/1/abc
func SourceURL(base, source string) string {
	base = strings.TrimRight(base, "/")
	return fmt.Sprintf("%s/%s/%s", base, path.Base(path.Dir(source)), path.Base(source))
}

// DownloadPath returns the default download destination for an image.
// Format: {cacheDir}/{name}.qcow2
func DownloadPath(cacheDir, name string) string {
	return filepath.Join(cacheDir, fmt.Sprintf("%s.qcow2", name))
}

// ISOName returns the file name a directory is packed into.
// Format: {basename}.iso
func ISOName(dir string) string {
	return fmt.Sprintf("%s.iso", filepath.Base(filepath.Clean(dir)))
}

// ISOLabel derives a volume identifier from a name. ISO9660 allows at most
// 32 characters from A-Z, 0-9 and underscore.
func ISOLabel(name string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(name) {
		if b.Len() == 32 {
			break
		}
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	if b.Len() == 0 {
		return "ONEIMAGE"
	}
	return b.String()
}
