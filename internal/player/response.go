package player

// Response is the subset of the /player endpoint payload the direct
// strategy consumes.
type Response struct {
	PlayabilityStatus PlayabilityStatus `json:"playabilityStatus"`
	StreamingData     StreamingData     `json:"streamingData"`
	VideoDetails      VideoDetails      `json:"videoDetails"`
}

type PlayabilityStatus struct {
	Status          string `json:"status"`
	Reason          string `json:"reason"`
	PlayableInEmbed bool   `json:"playableInEmbed"`
}

func (p *PlayabilityStatus) IsOK() bool {
	return p.Status == "OK"
}

type StreamingData struct {
	ExpiresInSeconds string      `json:"expiresInSeconds"`
	Formats          []RawFormat `json:"formats"`
	AdaptiveFormats  []RawFormat `json:"adaptiveFormats"`
}

// RawFormat is one encoded stream as the player endpoint describes it.
// URL is empty when the stream is ciphered; SignatureCipher (or the
// legacy Cipher field) then carries the pieces to recover it.
type RawFormat struct {
	Itag            int    `json:"itag"`
	URL             string `json:"url"`
	MimeType        string `json:"mimeType"`
	Bitrate         int    `json:"bitrate"`
	AverageBitrate  int    `json:"averageBitrate"`
	Width           int    `json:"width"`
	Height          int    `json:"height"`
	FPS             int    `json:"fps"`
	ContentLength   string `json:"contentLength"`
	Quality         string `json:"quality"`
	QualityLabel    string `json:"qualityLabel"`
	AudioQuality    string `json:"audioQuality"`
	AudioChannels   int    `json:"audioChannels"`
	SignatureCipher string `json:"signatureCipher"`
	Cipher          string `json:"cipher"`
}

type VideoDetails struct {
	VideoID       string `json:"videoId"`
	Title         string `json:"title"`
	Author        string `json:"author"`
	LengthSeconds string `json:"lengthSeconds"`
	ViewCount     string `json:"viewCount"`
	IsLiveContent bool   `json:"isLiveContent"`
}
