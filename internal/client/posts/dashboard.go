package posts

import (
	"context"

	"github.com/keyxmakerx/scribe/internal/client/media"
	"github.com/keyxmakerx/scribe/internal/client/platform"
	"github.com/keyxmakerx/scribe/internal/client/session"
)

// Draft is the dashboard form: title, content and an optional image file.
type Draft struct {
	Title   string
	Content string
	Image   *platform.File
}

// Dashboard runs the signed-in user's create, edit and delete flows. Any
// image is uploaded, and the upload awaited, before the row that refers to
// it is written. The session comes from the context's session store.
type Dashboard struct {
	repo  *Repository
	media *media.Uploader
	cache *Cache
}

// NewDashboard wires a dashboard over repo and uploader.
func NewDashboard(repo *Repository, uploader *media.Uploader) *Dashboard {
	return &Dashboard{repo: repo, media: uploader, cache: NewCache()}
}

// Posts returns the displayed list.
func (d *Dashboard) Posts() []platform.Post {
	return d.cache.List()
}

// Reload re-queries the user's posts.
func (d *Dashboard) Reload(ctx context.Context) error {
	sess, err := session.FromContext(ctx).RequireSession()
	if err != nil {
		return err
	}
	list, err := d.repo.ListByAuthor(ctx, sess.UserID)
	if err != nil {
		return err
	}
	d.cache.Replace(list)
	return nil
}

// Create publishes a new post as the session user.
func (d *Dashboard) Create(ctx context.Context, draft Draft) (*platform.Post, error) {
	sess, err := session.FromContext(ctx).RequireSession()
	if err != nil {
		return nil, err
	}
	imageURL, err := d.upload(ctx, draft.Image)
	if err != nil {
		return nil, err
	}
	post, err := d.repo.Create(ctx, sess.UserID, draft.Title, draft.Content, imageURL)
	if err != nil {
		return nil, err
	}
	d.cache.Put(*post)
	return post, nil
}

// Edit saves changes to a post. Without a new image the stored one stays.
func (d *Dashboard) Edit(ctx context.Context, postID int64, draft Draft) (*platform.Post, error) {
	if _, err := session.FromContext(ctx).RequireSession(); err != nil {
		return nil, err
	}
	imageURL, err := d.upload(ctx, draft.Image)
	if err != nil {
		return nil, err
	}
	post, err := d.repo.Update(ctx, postID, draft.Title, draft.Content, imageURL)
	if err != nil {
		return nil, err
	}
	d.cache.Put(*post)
	return post, nil
}

// Remove deletes a post and drops it from the displayed list.
func (d *Dashboard) Remove(ctx context.Context, postID int64) error {
	if _, err := session.FromContext(ctx).RequireSession(); err != nil {
		return err
	}
	if err := d.repo.Delete(ctx, postID); err != nil {
		return err
	}
	d.cache.Remove(postID)
	return nil
}

func (d *Dashboard) upload(ctx context.Context, file *platform.File) (*string, error) {
	if file == nil {
		return nil, nil
	}
	url, err := d.media.Upload(ctx, *file, platform.BucketPostImages)
	if err != nil {
		return nil, err
	}
	return &url, nil
}
