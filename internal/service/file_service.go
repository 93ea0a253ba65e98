package service

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"relaychat/internal/domain"
	"relaychat/internal/metrics"
	"relaychat/internal/protocol"
	"relaychat/internal/store/blob"
)

const sweepBatch = 100

// BlobStore keeps file bodies.
type BlobStore interface {
	Put(key string, r io.Reader, maxBytes int64) (int64, error)
	Open(key string) (io.ReadCloser, error)
	Delete(key string) error
}

// MessageDispatcher is the part of Dispatcher the file flow needs.
type MessageDispatcher interface {
	Dispatch(ctx context.Context, in DispatchInput) (*DispatchResult, error)
}

type FileConfig struct {
	TTL      time.Duration
	Grace    time.Duration
	MaxBytes int64
}

type UploadInput struct {
	From     string
	To       string
	Name     string
	MimeType string
	Body     io.Reader
}

type ShareResult struct {
	File      *domain.TempFile
	MessageID int64
}

// FileService owns the ephemeral file lifecycle: paid-only upload, a single
// download by the recipient, deletion after a grace delay, and a periodic
// sweep of anything past its expiry.
type FileService struct {
	files      domain.TempFileRepository
	blobs      BlobStore
	friends    domain.FriendshipRepository
	subs       SubscriptionChecker
	dispatcher MessageDispatcher
	deliver    Deliverer
	cfg        FileConfig
	now        func() time.Time
	log        *zap.Logger
}

func NewFileService(
	files domain.TempFileRepository,
	blobs BlobStore,
	friends domain.FriendshipRepository,
	subs SubscriptionChecker,
	dispatcher MessageDispatcher,
	deliver Deliverer,
	cfg FileConfig,
	log *zap.Logger,
) *FileService {
	return &FileService{
		files:      files,
		blobs:      blobs,
		friends:    friends,
		subs:       subs,
		dispatcher: dispatcher,
		deliver:    deliver,
		cfg:        cfg,
		now:        time.Now,
		log:        log.Named("files"),
	}
}

// WithClock replaces the time source. Used by tests.
func (s *FileService) WithClock(now func() time.Time) *FileService {
	s.now = now
	return s
}

// Upload stores a file for in.To. Only paid identities may upload, and only
// to a friend.
func (s *FileService) Upload(ctx context.Context, in UploadInput) (*domain.TempFile, error) {
	name := sanitizeName(in.Name)
	if in.To == "" || name == "" || in.Body == nil {
		return nil, domain.InvalidRequest("recipient and file are required")
	}

	paid, err := s.subs.IsPaidTier(ctx, in.From)
	if err != nil {
		s.log.Error("subscription lookup failed", zap.String("identity", in.From), zap.Error(err))
		return nil, domain.Internal("check subscription", err)
	}
	if !paid {
		return nil, domain.PaidFeature("file sharing requires a subscription")
	}
	ok, err := s.friends.AreFriends(ctx, in.From, in.To)
	if err != nil {
		s.log.Error("friendship check failed", zap.String("from", in.From), zap.Error(err))
		return nil, domain.Internal("check friendship", err)
	}
	if !ok {
		return nil, domain.NotFriends("you can only send files to your friends")
	}

	id := uuid.NewString()
	size, err := s.blobs.Put(id, in.Body, s.cfg.MaxBytes)
	if errors.Is(err, blob.ErrTooLarge) {
		return nil, domain.InvalidRequest("file is too large")
	}
	if err != nil {
		s.log.Error("store blob failed", zap.String("file_id", id), zap.Error(err))
		return nil, domain.Internal("store file", err)
	}

	mime := in.MimeType
	if mime == "" {
		mime = "application/octet-stream"
	}
	now := s.now().UTC()
	f := &domain.TempFile{
		ID:          id,
		From:        in.From,
		To:          in.To,
		Name:        name,
		Size:        size,
		MimeType:    mime,
		BlobLocator: id,
		ExpiresAt:   now.Add(s.cfg.TTL),
		CreatedAt:   now,
	}
	if err := s.files.Create(ctx, f); err != nil {
		_ = s.blobs.Delete(id)
		s.log.Error("store file metadata failed", zap.String("file_id", id), zap.Error(err))
		return nil, domain.Internal("store file", err)
	}
	return f, nil
}

// Share uploads a file, records it as an attachment-only message and tells
// the recipient it is available.
func (s *FileService) Share(ctx context.Context, in UploadInput) (*ShareResult, error) {
	f, err := s.Upload(ctx, in)
	if err != nil {
		return nil, err
	}

	ref := f.ID
	res, err := s.dispatcher.Dispatch(ctx, DispatchInput{From: in.From, To: in.To, FileRef: &ref})
	if err != nil {
		if delErr := s.Delete(context.WithoutCancel(ctx), f.ID); delErr != nil {
			s.log.Warn("cleanup after failed dispatch", zap.String("file_id", f.ID), zap.Error(delErr))
		}
		return nil, err
	}

	s.deliver.Deliver(ctx, f.To, protocol.NewFileAvailable(f))
	return &ShareResult{File: f, MessageID: res.MessageID}, nil
}

// FetchForDownload hands the file to its recipient exactly once. Any other
// requester, an expired file, or a second attempt all look like a missing
// file.
func (s *FileService) FetchForDownload(ctx context.Context, id, requester string) (*domain.TempFile, io.ReadCloser, error) {
	f, err := s.files.GetByID(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil, domain.NotFound("file not found")
	}
	if err != nil {
		s.log.Error("load file failed", zap.String("file_id", id), zap.Error(err))
		return nil, nil, domain.Internal("load file", err)
	}
	if f.To != requester || f.Expired(s.now()) {
		return nil, nil, domain.NotFound("file not found")
	}

	won, err := s.files.Claim(ctx, id)
	if err != nil {
		s.log.Error("claim file failed", zap.String("file_id", id), zap.Error(err))
		return nil, nil, domain.Internal("claim file", err)
	}
	if !won {
		return nil, nil, domain.NotFound("file not found")
	}

	body, err := s.blobs.Open(f.BlobLocator)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil, domain.NotFound("file not found")
	}
	if err != nil {
		s.log.Error("open blob failed", zap.String("file_id", id), zap.Error(err))
		return nil, nil, domain.Internal("open file", err)
	}
	return f, body, nil
}

// ScheduleDelete removes a downloaded file once the grace delay has passed.
func (s *FileService) ScheduleDelete(id string) {
	time.AfterFunc(s.cfg.Grace, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.Delete(ctx, id); err != nil {
			s.log.Warn("grace deletion failed, sweeper will retry", zap.String("file_id", id), zap.Error(err))
		}
	})
}

// Delete removes the blob and the metadata row. Deleting a file that is
// already gone is not an error.
func (s *FileService) Delete(ctx context.Context, id string) error {
	f, err := s.files.GetByID(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if err := s.blobs.Delete(f.BlobLocator); err != nil {
		return err
	}
	return s.files.Delete(ctx, id)
}

// SweepExpired deletes every file past its expiry and returns how many were
// removed.
func (s *FileService) SweepExpired(ctx context.Context) (int, error) {
	removed := 0
	for {
		batch, err := s.files.ListExpired(ctx, s.now(), sweepBatch)
		if err != nil {
			return removed, err
		}
		if len(batch) == 0 {
			return removed, nil
		}
		progressed := false
		for _, f := range batch {
			if err := s.blobs.Delete(f.BlobLocator); err != nil {
				s.log.Warn("sweep blob delete failed", zap.String("file_id", f.ID), zap.Error(err))
				continue
			}
			if err := s.files.Delete(ctx, f.ID); err != nil {
				s.log.Warn("sweep row delete failed", zap.String("file_id", f.ID), zap.Error(err))
				continue
			}
			removed++
			progressed = true
			metrics.FilesSweptTotal.Inc()
		}
		if !progressed || len(batch) < sweepBatch {
			return removed, nil
		}
	}
}

// RunSweeper calls SweepExpired every interval until ctx is done.
func (s *FileService) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.SweepExpired(ctx)
			if err != nil {
				s.log.Error("sweep failed", zap.Error(err))
				continue
			}
			if n > 0 {
				s.log.Info("swept expired files", zap.Int("count", n))
			}
		}
	}
}

func sanitizeName(name string) string {
	name = strings.TrimSpace(filepath.Base(strings.ReplaceAll(name, "\\", "/")))
	if name == "." || name == "/" {
		return ""
	}
	return name
}
