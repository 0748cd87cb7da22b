package instagram

import (
	"fmt"
	"net/url"
)

const (
	// BaseURL is the base URL for Instagram
	BaseURL = "https://www.instagram.com"

	// OEmbedURL is the public oEmbed endpoint; it returns a thumbnail but no media
	OEmbedURL = "https://graph.facebook.com/v12.0/instagram_oembed"

	// OEmbedMaxWidth is the thumbnail width requested from oEmbed
	OEmbedMaxWidth = 640
)

// GetPostURL constructs the URL for a specific post
func GetPostURL(shortcode string) string {
	return getPostURL(BaseURL, shortcode)
}

func getPostURL(base, shortcode string) string {
	if shortcode == "" {
		return ""
	}
	return fmt.Sprintf("%s/p/%s/", base, shortcode)
}

// GetEmbedURL constructs the embed page URL for a post
func GetEmbedURL(base, shortcode string) string {
	return getPostURL(base, shortcode) + "embed/"
}

// GetPostJSONURL constructs the legacy JSON view of a post
func GetPostJSONURL(base, shortcode string) string {
	params := url.Values{}
	params.Set("__a", "1")
	params.Set("__d", "dis")
	return getPostURL(base, shortcode) + "?" + params.Encode()
}

// GetOEmbedURL constructs the oEmbed query for a post
func GetOEmbedURL(endpoint, shortcode string) string {
	params := url.Values{}
	params.Set("url", GetPostURL(shortcode))
	params.Set("maxwidth", fmt.Sprint(OEmbedMaxWidth))
	return endpoint + "?" + params.Encode()
}
