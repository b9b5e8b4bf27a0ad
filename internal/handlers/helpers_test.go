package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/tubestream/backend/internal/middleware"
	"github.com/tubestream/backend/internal/models"
	"github.com/tubestream/backend/internal/repositories"
	"github.com/tubestream/backend/internal/uploads"
)

// In-memory fakes shared by the handler tests. They mirror the repository
// semantics closely enough to exercise the handlers' decision paths.

type userStoreFake struct {
	users map[string]models.User
}

func newUserStoreFake(users ...models.User) *userStoreFake {
	f := &userStoreFake{users: make(map[string]models.User)}
	for _, u := range users {
		f.users[u.ID] = u
	}
	return f
}

func (f *userStoreFake) Create(_ context.Context, user models.User) error {
	for _, existing := range f.users {
		if strings.EqualFold(existing.Email, user.Email) || existing.Username == user.Username {
			return repositories.ErrConflict
		}
	}
	f.users[user.ID] = user
	return nil
}

func (f *userStoreFake) FindByID(_ context.Context, id string) (models.User, error) {
	if u, ok := f.users[id]; ok {
		return u, nil
	}
	return models.User{}, repositories.ErrNotFound
}

func (f *userStoreFake) FindByEmail(_ context.Context, email string) (models.User, error) {
	for _, u := range f.users {
		if strings.EqualFold(u.Email, email) {
			return u, nil
		}
	}
	return models.User{}, repositories.ErrNotFound
}

func (f *userStoreFake) FindByUsername(_ context.Context, username string) (models.User, error) {
	for _, u := range f.users {
		if u.Username == username {
			return u, nil
		}
	}
	return models.User{}, repositories.ErrNotFound
}

func (f *userStoreFake) FindByEmailOrUsername(_ context.Context, email, username string) (models.User, error) {
	for _, u := range f.users {
		if strings.EqualFold(u.Email, email) || u.Username == username {
			return u, nil
		}
	}
	return models.User{}, repositories.ErrNotFound
}

func (f *userStoreFake) UpdatePassword(_ context.Context, userID, passwordHash string, updatedAt time.Time) error {
	u, ok := f.users[userID]
	if !ok {
		return repositories.ErrNotFound
	}
	u.Password = passwordHash
	u.UpdatedAt = updatedAt
	f.users[userID] = u
	return nil
}

type channelStoreFake struct {
	channels map[string]models.Channel
}

func newChannelStoreFake(channels ...models.Channel) *channelStoreFake {
	f := &channelStoreFake{channels: make(map[string]models.Channel)}
	for _, c := range channels {
		f.channels[c.ID] = c
	}
	return f
}

func (f *channelStoreFake) Create(_ context.Context, channel models.Channel) error {
	for _, existing := range f.channels {
		if existing.OwnerID == channel.OwnerID {
			return repositories.ErrOwnerHasChannel
		}
		if existing.Username == channel.Username {
			return repositories.ErrUsernameTaken
		}
	}
	f.channels[channel.ID] = channel
	return nil
}

func (f *channelStoreFake) FindByOwner(_ context.Context, ownerID string) (models.Channel, error) {
	for _, c := range f.channels {
		if c.OwnerID == ownerID {
			return c, nil
		}
	}
	return models.Channel{}, repositories.ErrNotFound
}

func (f *channelStoreFake) FindByUsername(_ context.Context, username string) (models.Channel, error) {
	for _, c := range f.channels {
		if c.Username == username {
			return c, nil
		}
	}
	return models.Channel{}, repositories.ErrNotFound
}

func (f *channelStoreFake) List(_ context.Context) ([]models.Channel, error) {
	out := make([]models.Channel, 0, len(f.channels))
	for _, c := range f.channels {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *channelStoreFake) Update(_ context.Context, channel models.Channel) error {
	if _, ok := f.channels[channel.ID]; !ok {
		return repositories.ErrNotFound
	}
	f.channels[channel.ID] = channel
	return nil
}

func (f *channelStoreFake) Delete(_ context.Context, id string) error {
	if _, ok := f.channels[id]; !ok {
		return repositories.ErrNotFound
	}
	delete(f.channels, id)
	return nil
}

type videoStoreFake struct {
	videos map[string]models.Video
}

func newVideoStoreFake(videos ...models.Video) *videoStoreFake {
	f := &videoStoreFake{videos: make(map[string]models.Video)}
	for _, v := range videos {
		f.videos[v.ID] = v
	}
	return f
}

func (f *videoStoreFake) Create(_ context.Context, video models.Video) error {
	f.videos[video.ID] = video
	return nil
}

func (f *videoStoreFake) FindByID(_ context.Context, id string) (models.Video, error) {
	if v, ok := f.videos[id]; ok {
		return v, nil
	}
	return models.Video{}, repositories.ErrNotFound
}

func (f *videoStoreFake) View(_ context.Context, id string) (models.Video, error) {
	v, ok := f.videos[id]
	if !ok {
		return models.Video{}, repositories.ErrNotFound
	}
	v.Views++
	f.videos[id] = v
	return v, nil
}

func (f *videoStoreFake) List(_ context.Context, filter repositories.VideoListFilter) ([]models.Video, int64, error) {
	out := make([]models.Video, 0, len(f.videos))
	for _, v := range f.videos {
		if !v.IsSample && v.Visibility != models.VisibilityPublic {
			continue
		}
		if filter.Category != "" && v.Category != filter.Category {
			continue
		}
		if filter.Search != "" && !strings.Contains(strings.ToLower(v.Title), strings.ToLower(filter.Search)) {
			continue
		}
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, int64(len(out)), nil
}

func (f *videoStoreFake) ListByOwner(_ context.Context, ownerID string) ([]models.Video, error) {
	out := make([]models.Video, 0)
	for _, v := range f.videos {
		if v.OwnerID == ownerID {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *videoStoreFake) ListByChannel(_ context.Context, channelID string) ([]models.Video, error) {
	out := make([]models.Video, 0)
	for _, v := range f.videos {
		if v.ChannelID == channelID {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *videoStoreFake) Update(_ context.Context, video models.Video) error {
	if _, ok := f.videos[video.ID]; !ok {
		return repositories.ErrNotFound
	}
	f.videos[video.ID] = video
	return nil
}

func (f *videoStoreFake) Delete(_ context.Context, id string) error {
	if _, ok := f.videos[id]; !ok {
		return repositories.ErrNotFound
	}
	delete(f.videos, id)
	return nil
}

type commentStoreFake struct {
	comments map[string]models.Comment
	videos   *videoStoreFake
}

func newCommentStoreFake(videos *videoStoreFake, comments ...models.Comment) *commentStoreFake {
	f := &commentStoreFake{comments: make(map[string]models.Comment), videos: videos}
	for _, c := range comments {
		f.comments[c.ID] = c
	}
	return f
}

func (f *commentStoreFake) Create(_ context.Context, comment models.Comment) error {
	if f.videos != nil {
		v, ok := f.videos.videos[comment.VideoID]
		if !ok {
			return repositories.ErrNotFound
		}
		v.CommentCount++
		f.videos.videos[comment.VideoID] = v
	}
	f.comments[comment.ID] = comment
	return nil
}

func (f *commentStoreFake) FindByID(_ context.Context, id string) (models.Comment, error) {
	if c, ok := f.comments[id]; ok {
		return c, nil
	}
	return models.Comment{}, repositories.ErrNotFound
}

func (f *commentStoreFake) ListByVideo(_ context.Context, videoID string) ([]models.Comment, error) {
	out := make([]models.Comment, 0)
	for _, c := range f.comments {
		if c.VideoID == videoID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (f *commentStoreFake) Update(_ context.Context, comment models.Comment) error {
	if _, ok := f.comments[comment.ID]; !ok {
		return repositories.ErrNotFound
	}
	f.comments[comment.ID] = comment
	return nil
}

func (f *commentStoreFake) Delete(_ context.Context, id string) error {
	c, ok := f.comments[id]
	if !ok {
		return repositories.ErrNotFound
	}
	if f.videos != nil {
		if v, ok := f.videos.videos[c.VideoID]; ok && v.CommentCount > 0 {
			v.CommentCount--
			f.videos.videos[c.VideoID] = v
		}
	}
	delete(f.comments, id)
	return nil
}

type likeStoreFake struct {
	reactions map[string]string
	videos    *videoStoreFake
}

func newLikeStoreFake(videos *videoStoreFake) *likeStoreFake {
	return &likeStoreFake{reactions: make(map[string]string), videos: videos}
}

func (f *likeStoreFake) React(_ context.Context, userID, videoID, kind string) (int64, int64, error) {
	v, ok := f.videos.videos[videoID]
	if !ok {
		return 0, 0, repositories.ErrNotFound
	}
	key := userID + "/" + videoID
	switch previous := f.reactions[key]; previous {
	case kind:
	case "":
		f.reactions[key] = kind
		if kind == models.ReactionLike {
			v.Likes++
		} else {
			v.Dislikes++
		}
	default:
		f.reactions[key] = kind
		if kind == models.ReactionLike {
			v.Likes++
			v.Dislikes--
		} else {
			v.Dislikes++
			v.Likes--
		}
	}
	f.videos.videos[videoID] = v
	return v.Likes, v.Dislikes, nil
}

type tokenServiceStub struct {
	issueErr error
	resets   map[string]string
}

func (s *tokenServiceStub) Issue(userID, username string) (string, error) {
	if s.issueErr != nil {
		return "", s.issueErr
	}
	return fmt.Sprintf("token-%s-%s", userID, username), nil
}

func (s *tokenServiceStub) IssueReset(userID string) (string, error) {
	if s.resets == nil {
		s.resets = make(map[string]string)
	}
	token := "reset-" + userID
	s.resets[token] = userID
	return token, nil
}

func (s *tokenServiceStub) VerifyReset(token string) (string, error) {
	if userID, ok := s.resets[token]; ok {
		return userID, nil
	}
	return "", errors.New("unknown reset token")
}

type uploaderStub struct {
	result     uploads.Result
	err        error
	discarded  int
	lastResult uploads.Result
}

func (s *uploaderStub) Process(*http.Request) (uploads.Result, error) {
	if s.err != nil {
		return uploads.Result{}, s.err
	}
	return s.result, nil
}

func (s *uploaderStub) Discard(_ *http.Request, result uploads.Result) {
	s.discarded++
	s.lastResult = result
}

func authed(r *http.Request, user models.PublicUser) *http.Request {
	return r.WithContext(middleware.ContextWithIdentity(r.Context(), user))
}
