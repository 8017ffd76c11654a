package coverart

// releaseGroupResponse is the Cover Art Archive listing for a release group.
type releaseGroupResponse struct {
	Release string  `json:"release"`
	Images  []image `json:"images"`
}

type image struct {
	Image      string     `json:"image"`
	Front      bool       `json:"front"`
	Types      []string   `json:"types"`
	Thumbnails thumbnails `json:"thumbnails"`
}

type thumbnails struct {
	Small string `json:"small"`
	Large string `json:"large"`
}
