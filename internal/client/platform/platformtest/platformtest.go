// Package platformtest provides in-memory platform capabilities for client
// tests: a scriptable auth provider, a row store that enforces post and
// profile ownership, an object store, and a recording navigator.
package platformtest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/keyxmakerx/scribe/internal/client/platform"
	"github.com/keyxmakerx/scribe/internal/restquery"
)

// --- Navigator ---

// Navigator records Refresh and Navigate calls.
type Navigator struct {
	mu        sync.Mutex
	Refreshes int
	Views     []string
}

func (n *Navigator) Refresh() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Refreshes++
}

func (n *Navigator) Navigate(view string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Views = append(n.Views, view)
}

// --- Auth provider ---

// Auth is a scriptable AuthProvider. Unset function fields fall back to
// simple in-memory behavior; Emit drives listeners directly.
type Auth struct {
	SignUpFn         func(ctx context.Context, email, password string) (*platform.Session, error)
	SignInFn         func(ctx context.Context, email, password string) (*platform.Session, error)
	SignOutFn        func(ctx context.Context) error
	GetSessionFn     func(ctx context.Context) (*platform.Session, error)
	ResetFn          func(ctx context.Context, email, redirectURL string) error
	UpdateUserFn     func(ctx context.Context, attrs platform.UserAttributes) error
	VerifyRecoveryFn func(ctx context.Context, token string) (*platform.Session, error)

	mu        sync.Mutex
	session   *platform.Session
	listeners map[int]platform.Listener
	nextID    int
	Calls     []string
}

// NewSession builds a complete session for userID.
func NewSession(userID, email string) *platform.Session {
	return &platform.Session{
		UserID:       userID,
		Email:        email,
		AccessToken:  "access-" + userID,
		RefreshToken: "refresh-" + userID,
		ExpiresAt:    time.Now().Add(time.Hour),
	}
}

func (a *Auth) record(call string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.Calls = append(a.Calls, call)
}

func (a *Auth) SignUp(ctx context.Context, email, password string) (*platform.Session, error) {
	a.record("SignUp")
	if a.SignUpFn != nil {
		return a.signedIn(a.SignUpFn(ctx, email, password))
	}
	return a.signedIn(NewSession("user-"+platform.UsernameFromEmail(email), email), nil)
}

func (a *Auth) SignInWithPassword(ctx context.Context, email, password string) (*platform.Session, error) {
	a.record("SignInWithPassword")
	if a.SignInFn != nil {
		return a.signedIn(a.SignInFn(ctx, email, password))
	}
	return a.signedIn(NewSession("user-"+platform.UsernameFromEmail(email), email), nil)
}

func (a *Auth) signedIn(sess *platform.Session, err error) (*platform.Session, error) {
	if err != nil {
		return nil, err
	}
	a.mu.Lock()
	a.session = sess
	a.mu.Unlock()
	a.Emit(platform.SignedIn, sess)
	return sess, nil
}

func (a *Auth) SignOut(ctx context.Context) error {
	a.record("SignOut")
	if a.SignOutFn != nil {
		if err := a.SignOutFn(ctx); err != nil {
			return err
		}
	}
	a.mu.Lock()
	a.session = nil
	a.mu.Unlock()
	a.Emit(platform.SignedOut, nil)
	return nil
}

func (a *Auth) GetSession(ctx context.Context) (*platform.Session, error) {
	a.record("GetSession")
	if a.GetSessionFn != nil {
		return a.GetSessionFn(ctx)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.session, nil
}

func (a *Auth) ResetPasswordForEmail(ctx context.Context, email, redirectURL string) error {
	a.record("ResetPasswordForEmail")
	if a.ResetFn != nil {
		return a.ResetFn(ctx, email, redirectURL)
	}
	return nil
}

func (a *Auth) UpdateUser(ctx context.Context, attrs platform.UserAttributes) error {
	a.record("UpdateUser")
	if a.UpdateUserFn != nil {
		return a.UpdateUserFn(ctx, attrs)
	}
	return nil
}

func (a *Auth) VerifyRecovery(ctx context.Context, token string) (*platform.Session, error) {
	a.record("VerifyRecovery")
	if a.VerifyRecoveryFn != nil {
		return a.VerifyRecoveryFn(ctx, token)
	}
	return nil, &platform.APIError{Status: http.StatusUnauthorized, Code: "unauthorized", Message: "invalid or expired recovery link"}
}

func (a *Auth) OnAuthStateChange(fn platform.Listener) platform.Subscription {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.listeners == nil {
		a.listeners = make(map[int]platform.Listener)
	}
	id := a.nextID
	a.nextID++
	a.listeners[id] = fn
	return &Subscription{auth: a, id: id}
}

// Listeners returns the number of live subscriptions.
func (a *Auth) Listeners() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.listeners)
}

// Emit delivers an event to every listener in registration order.
func (a *Auth) Emit(kind platform.EventKind, sess *platform.Session) {
	a.mu.Lock()
	ids := make([]int, 0, len(a.listeners))
	for id := range a.listeners {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	fns := make([]platform.Listener, len(ids))
	for i, id := range ids {
		fns[i] = a.listeners[id]
	}
	a.mu.Unlock()

	for _, fn := range fns {
		fn(platform.AuthEvent{Kind: kind, Session: sess})
	}
}

// Subscription counts its Unsubscribe calls.
type Subscription struct {
	auth  *Auth
	id    int
	Calls int
}

func (s *Subscription) Unsubscribe() {
	s.auth.mu.Lock()
	defer s.auth.mu.Unlock()
	s.Calls++
	delete(s.auth.listeners, s.id)
}

// --- Object store ---

// Objects is an in-memory ObjectStore. UploadErr fails every upload.
type Objects struct {
	mu        sync.Mutex
	Data      map[string][]byte
	Types     map[string]string
	UploadErr error
}

func (o *Objects) Upload(_ context.Context, bucket, name, contentType string, body io.Reader) error {
	if o.UploadErr != nil {
		return o.UploadErr
	}
	b, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.Data == nil {
		o.Data = make(map[string][]byte)
		o.Types = make(map[string]string)
	}
	o.Data[bucket+"/"+name] = b
	o.Types[bucket+"/"+name] = contentType
	return nil
}

func (o *Objects) PublicURL(bucket, name string) string {
	return "https://objects.test/" + bucket + "/" + name
}

// Keys returns the stored object keys, sorted.
func (o *Objects) Keys() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	keys := make([]string, 0, len(o.Data))
	for k := range o.Data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// --- Row store ---

// Rows is an in-memory RowStore for the posts and profiles tables. Caller
// reports the acting user id; writes are checked against it the way the
// server does. Errs injects a failure per method name.
type Rows struct {
	Caller func() string
	Emails map[string]string
	Errs   map[string]error

	mu       sync.Mutex
	posts    []platform.Post
	profiles map[string]platform.Profile
	nextID   int64
	Now      func() time.Time
	Calls    []string
}

func (r *Rows) begin(method string) error {
	r.mu.Lock()
	r.Calls = append(r.Calls, method)
	r.mu.Unlock()
	if err := r.Errs[method]; err != nil {
		return err
	}
	return nil
}

func (r *Rows) caller() string {
	if r.Caller == nil {
		return ""
	}
	return r.Caller()
}

func (r *Rows) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now().UTC()
}

func forbidden(msg string) error {
	return &platform.APIError{Status: http.StatusForbidden, Code: "forbidden", Message: msg}
}

// Posts returns a copy of the stored posts.
func (r *Rows) Posts() []platform.Post {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]platform.Post(nil), r.posts...)
}

// Profile returns a stored profile.
func (r *Rows) Profile(id string) (platform.Profile, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.profiles[id]
	return p, ok
}

func (r *Rows) Insert(_ context.Context, table string, row any, out any) error {
	if err := r.begin("Insert"); err != nil {
		return err
	}
	if table != platform.TablePosts {
		return fmt.Errorf("platformtest: insert into %q unsupported", table)
	}
	var p platform.Post
	if err := convert(row, &p); err != nil {
		return err
	}
	if p.AuthorID != r.caller() {
		return forbidden("author_id must match the signed-in user")
	}

	r.mu.Lock()
	r.nextID++
	p.ID = r.nextID
	p.CreatedAt = r.now()
	p.UpdatedAt = p.CreatedAt
	r.posts = append(r.posts, p)
	r.mu.Unlock()
	return convert([]platform.Post{p}, out)
}

func (r *Rows) Upsert(_ context.Context, table string, row any, out any) error {
	if err := r.begin("Upsert"); err != nil {
		return err
	}
	if table != platform.TableProfiles {
		return fmt.Errorf("platformtest: upsert into %q unsupported", table)
	}
	var p platform.Profile
	if err := convert(row, &p); err != nil {
		return err
	}
	if p.ID != r.caller() {
		return forbidden("cannot write another user's profile")
	}

	r.mu.Lock()
	if r.profiles == nil {
		r.profiles = make(map[string]platform.Profile)
	}
	r.profiles[p.ID] = p
	r.mu.Unlock()
	return convert([]platform.Profile{p}, out)
}

func (r *Rows) Select(_ context.Context, table string, q restquery.Query, out any) error {
	if err := r.begin("Select"); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	switch table {
	case platform.TablePosts:
		var res []platform.Post
		for i := len(r.posts) - 1; i >= 0; i-- {
			if postMatches(r.posts[i], q.Filters) {
				res = append(res, r.posts[i])
			}
		}
		if res == nil {
			res = []platform.Post{}
		}
		return convert(res, out)
	case platform.TableProfiles:
		res := []platform.Profile{}
		for _, p := range r.profiles {
			if v, ok := q.Value("id"); !ok || v == p.ID {
				res = append(res, p)
			}
		}
		return convert(res, out)
	}
	return fmt.Errorf("platformtest: select from %q unsupported", table)
}

func (r *Rows) Update(_ context.Context, table string, filters []restquery.Filter, patch any, out any) error {
	if err := r.begin("Update"); err != nil {
		return err
	}
	var fields map[string]any
	if err := convert(patch, &fields); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	var updated []platform.Post
	for i := range r.posts {
		p := &r.posts[i]
		if p.AuthorID != r.caller() || !postMatches(*p, filters) {
			continue
		}
		if v, ok := fields["title"].(string); ok {
			p.Title = v
		}
		if v, ok := fields["content"].(string); ok {
			p.Content = v
		}
		if v, ok := fields["image_url"].(string); ok {
			p.ImageURL = &v
		}
		p.UpdatedAt = r.now()
		updated = append(updated, *p)
	}
	if len(updated) == 0 {
		return &platform.APIError{Status: http.StatusNotFound, Code: "not_found", Message: "post not found"}
	}
	return convert(updated, out)
}

func (r *Rows) Delete(_ context.Context, table string, filters []restquery.Filter) error {
	if err := r.begin("Delete"); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	kept := r.posts[:0]
	removed := 0
	for _, p := range r.posts {
		if p.AuthorID == r.caller() && postMatches(p, filters) {
			removed++
			continue
		}
		kept = append(kept, p)
	}
	r.posts = kept
	if removed == 0 {
		return &platform.APIError{Status: http.StatusNotFound, Code: "not_found", Message: "post not found"}
	}
	return nil
}

func (r *Rows) RPC(_ context.Context, fn string, _ any, out any) error {
	if err := r.begin("RPC"); err != nil {
		return err
	}
	if fn != platform.RPCFeed {
		return fmt.Errorf("platformtest: unknown rpc %q", fn)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	res := []platform.PostWithAuthor{}
	for i := len(r.posts) - 1; i >= 0; i-- {
		p := r.posts[i]
		row := platform.PostWithAuthor{Post: p, AuthorEmail: r.Emails[p.AuthorID]}
		if prof, ok := r.profiles[p.AuthorID]; ok {
			row.AuthorUsername = prof.Username
			row.AuthorAvatar = prof.AvatarURL
		}
		res = append(res, row)
	}
	return convert(res, out)
}

func postMatches(p platform.Post, filters []restquery.Filter) bool {
	for _, f := range filters {
		var v string
		switch f.Column {
		case "id":
			v = strconv.FormatInt(p.ID, 10)
		case "author_id":
			v = p.AuthorID
		default:
			continue
		}
		if f.Op == restquery.Eq && v != f.Value {
			return false
		}
	}
	return true
}

// convert copies in to out through JSON, the way rows cross the wire.
func convert(in, out any) error {
	if out == nil {
		return nil
	}
	b, err := json.Marshal(in)
	if err != nil {
		return err
	}
	return json.NewDecoder(bytes.NewReader(b)).Decode(out)
}
