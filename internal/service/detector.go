package service

import (
	"net/url"
	"path"
	"strings"

	"xtream-web-go/internal/client"
	"xtream-web-go/internal/model"
)

// Classification sources used as the metrics label.
const (
	sourceExtension   = "extension"
	sourceProbe       = "probe"
	sourceProbeFailed = "probe_failed"
)

// binaryExtensions are path suffixes that never need a probe.
var binaryExtensions = map[string]bool{
	".ts":   true,
	".m4s":  true,
	".mp4":  true,
	".m4v":  true,
	".m4a":  true,
	".mkv":  true,
	".avi":  true,
	".mov":  true,
	".webm": true,
	".flv":  true,
	".aac":  true,
	".mp3":  true,
	".ac3":  true,
	".vtt":  true,
	".key":  true,
}

// Classify decides whether pr.TargetURL is an HLS manifest or binary media.
// The path extension is checked first, case-insensitively and ignoring the
// query string. Anything else is resolved with a HEAD probe; a failed probe
// classifies as binary.
func (s *StreamService) Classify(pr *model.ProxyRequest) model.MediaKind {
	switch ext := targetExtension(pr.TargetURL); {
	case ext == ".m3u8":
		return s.classified(model.KindManifest, sourceExtension)
	case binaryExtensions[ext]:
		return s.classified(model.KindBinary, sourceExtension)
	}

	contentType, err := s.upstream.Probe(pr.Ctx, pr.TargetURL)
	if err != nil {
		s.logger.Debug("probe failed, treating as binary",
			"url", client.Redact(pr.TargetURL),
			"err", client.Redact(err.Error()),
		)
		return s.classified(model.KindBinary, sourceProbeFailed)
	}
	if IsManifestContentType(contentType) {
		return s.classified(model.KindManifest, sourceProbe)
	}
	return s.classified(model.KindBinary, sourceProbe)
}

// IsManifestContentType reports whether a Content-Type names an HLS playlist.
func IsManifestContentType(contentType string) bool {
	ct := strings.ToLower(contentType)
	return strings.Contains(ct, "mpegurl") || strings.Contains(ct, "m3u8")
}

func (s *StreamService) classified(kind model.MediaKind, source string) model.MediaKind {
	if s.metrics != nil {
		s.metrics.Classifications.WithLabelValues(kind.String(), source).Inc()
	}
	return kind
}

func targetExtension(target string) string {
	u, err := url.Parse(target)
	if err != nil {
		return ""
	}
	return strings.ToLower(path.Ext(u.Path))
}
