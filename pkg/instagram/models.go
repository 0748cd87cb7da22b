package instagram

// OEmbedResponse is the subset of the oEmbed payload the proxy uses
type OEmbedResponse struct {
	Title           string `json:"title"`
	AuthorName      string `json:"author_name"`
	AuthorURL       string `json:"author_url"`
	HTML            string `json:"html"`
	ThumbnailURL    string `json:"thumbnail_url"`
	ThumbnailWidth  int    `json:"thumbnail_width"`
	ThumbnailHeight int    `json:"thumbnail_height"`
}

// PostMedia is a post as returned by the ?__a=1 JSON view
type PostMedia struct {
	Typename   string `json:"__typename"`
	Shortcode  string `json:"shortcode"`
	IsVideo    bool   `json:"is_video"`
	VideoURL   string `json:"video_url"`
	DisplayURL string `json:"display_url"`
}

// URLs returns the media URLs of the post, video first
func (m *PostMedia) URLs() []string {
	if m == nil {
		return nil
	}
	var urls []string
	if m.VideoURL != "" {
		urls = append(urls, m.VideoURL)
	}
	if m.DisplayURL != "" && m.DisplayURL != m.VideoURL {
		urls = append(urls, m.DisplayURL)
	}
	return urls
}

// postJSONResponse covers both the graphql and the items shapes
type postJSONResponse struct {
	GraphQL *struct {
		ShortcodeMedia *PostMedia `json:"shortcode_media"`
	} `json:"graphql"`
	Items []PostMedia `json:"items"`
}

func (r *postJSONResponse) media() *PostMedia {
	if r.GraphQL != nil && r.GraphQL.ShortcodeMedia != nil {
		return r.GraphQL.ShortcodeMedia
	}
	if len(r.Items) > 0 {
		return &r.Items[0]
	}
	return nil
}
