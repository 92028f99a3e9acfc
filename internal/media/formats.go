package media

import (
	"fmt"
	"strings"

	"github.com/creativehub/media/internal/model"
)

// Video formats that need a transcode pass before they can play in
// browsers.
var transcodeVideoFormats = map[string]bool{
	"mov": true, "mkv": true, "avi": true, "hevc": true,
	"flv": true, "wmv": true, "m4v": true, "3gp": true,
}

// NeedsTranscode reports whether a video with the given extension must be
// re-encoded.
func NeedsTranscode(ext string) bool {
	return transcodeVideoFormats[strings.ToLower(strings.TrimSpace(ext))]
}

// IsCompatibleVideo reports whether the container already plays everywhere
// and can be served as-is.
func IsCompatibleVideo(ext string) bool {
	return strings.ToLower(strings.TrimSpace(ext)) == "mp4"
}

// FileTypeFromMIME maps an upload's content type to the stored file type.
// An unrecognized type is a precondition failure: the upload is rejected
// before any job exists.
func FileTypeFromMIME(mimeType string) (string, error) {
	switch {
	case strings.HasPrefix(mimeType, "image/"):
		return model.FileTypeImage, nil
	case strings.HasPrefix(mimeType, "video/"):
		return model.FileTypeVideo, nil
	case strings.HasPrefix(mimeType, "audio/"):
		return model.FileTypeAudio, nil
	case mimeType == "":
		return "", fmt.Errorf("missing content type")
	default:
		return "", fmt.Errorf("unsupported content type: %s", mimeType)
	}
}

// Ext extracts the lower-cased extension (without dot) from a filename.
func Ext(filename string) string {
	idx := strings.LastIndex(filename, ".")
	if idx <= 0 || idx == len(filename)-1 {
		return ""
	}
	return strings.ToLower(filename[idx+1:])
}
