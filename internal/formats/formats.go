// Package formats normalizes and ranks the encoded streams a player
// response advertises.
package formats

import (
	"sort"
	"strconv"
	"strings"

	"github.com/famomatic/tubefetch/internal/player"
)

// Format is the normalized stream model.
type Format struct {
	Itag          int
	MimeType      string
	HasVideo      bool
	HasAudio      bool
	Bitrate       int
	Width         int
	Height        int
	FPS           int
	ContentLength int64
	Quality       string
	QualityLabel  string
	Ciphered      bool

	// Raw keeps the source format so the resolver can recover the URL.
	Raw player.RawFormat
}

// FromPlayer flattens progressive and adaptive streams into one list.
func FromPlayer(resp *player.Response) []Format {
	var out []Format
	collect := func(raw []player.RawFormat) {
		for _, f := range raw {
			mime := strings.ToLower(f.MimeType)
			out = append(out, Format{
				Itag:          f.Itag,
				MimeType:      f.MimeType,
				HasVideo:      strings.HasPrefix(mime, "video/"),
				HasAudio:      strings.HasPrefix(mime, "audio/") || f.AudioChannels > 0 || f.AudioQuality != "",
				Bitrate:       pickBitrate(f),
				Width:         f.Width,
				Height:        f.Height,
				FPS:           f.FPS,
				ContentLength: parseInt64(f.ContentLength),
				Quality:       f.Quality,
				QualityLabel:  f.QualityLabel,
				Ciphered:      f.URL == "" && (f.SignatureCipher != "" || f.Cipher != ""),
				Raw:           f,
			})
		}
	}
	collect(resp.StreamingData.Formats)
	collect(resp.StreamingData.AdaptiveFormats)
	return out
}

// SortByBest orders formats by resolution, then bitrate.
func SortByBest(fs []Format) {
	sort.SliceStable(fs, func(i, j int) bool {
		if fs[i].Height != fs[j].Height {
			return fs[i].Height > fs[j].Height
		}
		if fs[i].Bitrate != fs[j].Bitrate {
			return fs[i].Bitrate > fs[j].Bitrate
		}
		return false
	})
}

// Muxed filters to streams carrying both tracks: the only kind a single
// raw GET can turn into a playable file.
func Muxed(fs []Format) []Format {
	var out []Format
	for _, f := range fs {
		if f.HasVideo && f.HasAudio {
			out = append(out, f)
		}
	}
	return out
}

// BestMuxed returns the highest-ranked muxed stream.
func BestMuxed(fs []Format) (Format, bool) {
	muxed := Muxed(fs)
	if len(muxed) == 0 {
		return Format{}, false
	}
	SortByBest(muxed)
	return muxed[0], true
}

func pickBitrate(f player.RawFormat) int {
	if f.AverageBitrate > 0 {
		return f.AverageBitrate
	}
	return f.Bitrate
}

func parseInt64(s string) int64 {
	if s == "" {
		return 0
	}
	n, _ := strconv.ParseInt(s, 10, 64)
	return n
}
