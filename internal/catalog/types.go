package catalog

// Candidate is a single artist hit returned by the catalog search endpoint.
type Candidate struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Popularity int    `json:"popularity"`
	ProfileURL string `json:"profile_url"`
	// ArtworkURL is the best-resolution image the catalog exposed.
	ArtworkURL string `json:"artwork_url,omitempty"`
}

// searchResponse is the JSON body of the search endpoint.
type searchResponse struct {
	Results []searchResult `json:"results"`
	Total   int            `json:"total"`
}

// searchResult is one raw search hit, before image selection.
type searchResult struct {
	ID         string        `json:"id"`
	Name       string        `json:"name"`
	Popularity int           `json:"popularity"`
	ProfileURL string        `json:"profile_url"`
	Images     []imageResult `json:"images"`
}

// imageResult is an artwork variant; catalogs usually expose several sizes.
type imageResult struct {
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// bestArtwork picks the highest-resolution variant.
func bestArtwork(images []imageResult) string {
	best := ""
	bestArea := -1
	for _, img := range images {
		if img.URL == "" {
			continue
		}
		area := img.Width * img.Height
		if area > bestArea {
			best = img.URL
			bestArea = area
		}
	}
	return best
}
