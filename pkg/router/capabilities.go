package router

// Capabilities describes what the router can fetch with the current
// account configuration
type Capabilities struct {
	VideoReels             bool `json:"video_reels"`
	VideoPosts             bool `json:"video_posts"`
	PhotoPosts             bool `json:"photo_posts"`
	CarouselFull           bool `json:"carousel_full"`
	CarouselFirstItem      bool `json:"carousel_first_item"`
	RequiresAuthentication bool `json:"requires_authentication"`
	Accounts               int  `json:"accounts"`
	AccountsAvailable      int  `json:"accounts_available"`
}

// Capabilities reports the features available right now. Photos and full
// carousels need at least one configured account.
func (r *Router) Capabilities() Capabilities {
	c := Capabilities{
		VideoReels:        true,
		VideoPosts:        true,
		CarouselFirstItem: true,
	}
	if r.pool != nil {
		c.Accounts = r.pool.Len()
		c.AccountsAvailable = r.pool.AvailableCount()
	}
	has := r.HasCredentials()
	c.PhotoPosts = has
	c.CarouselFull = has
	c.RequiresAuthentication = !has
	return c
}
