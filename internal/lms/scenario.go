package lms

import (
	"context"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/storelabs/storelabs/internal/errors"
	"github.com/storelabs/storelabs/internal/storage"
)

// Scenario names the keys each workload step touches.
type Scenario struct {
	ListPrefix       string
	AnnouncementKey  string
	AnnouncementText string
	ReuploadKey      string
	DeleteKeys       []string
	PresignKey       string
	PresignExpiry    time.Duration
	DownloadName     string
	MirrorPrefix     string
	MirrorDir        string
	Concurrency      int
}

// DefaultScenario returns the classic lab steps.
func DefaultScenario() Scenario {
	return Scenario{
		ListPrefix:       "courses/CS202/weeks/week02/",
		AnnouncementKey:  "announcements/2025-09-25.txt",
		AnnouncementText: UpdatedAnnouncement,
		ReuploadKey:      "courses/CS101/weeks/week01/slides.pdf",
		DeleteKeys: []string{
			"datasets/CS101/marks.csv",
			"submissions/CS101/assignment1/2023002/assignment.pdf",
		},
		PresignKey:    "submissions/CS101/assignment1/2023001/assignment.pdf",
		PresignExpiry: time.Hour,
		DownloadName:  "download_using_url.pdf",
		MirrorPrefix:  "courses/",
		MirrorDir:     "mirror",
		Concurrency:   4,
	}
}

// Result collects what each step observed.
type Result struct {
	Uploaded         int
	Listed           []storage.ObjectInfo
	Announcement     string
	VersioningStatus string
	Versions         []storage.ObjectInfo
	Deleted          []DeleteResult
	PresignedURL     string
	DownloadedBytes  int64
	Mirror           *storage.MirrorResult
}

// Run writes the dummy files and runs every step of sc in order. Steps the
// backend cannot perform (versioning, presigning) are skipped with a warning.
func (l *Lab) Run(ctx context.Context, plan []PlanItem, sc Scenario) (*Result, error) {
	res := &Result{}
	if _, err := l.PrepareFiles(plan); err != nil {
		return res, err
	}

	var err error
	if res.Uploaded, err = l.UploadAll(ctx, plan); err != nil {
		return res, err
	}
	if res.Listed, err = l.List(ctx, sc.ListPrefix); err != nil {
		return res, err
	}
	if res.Announcement, err = l.UpdateAnnouncement(ctx, sc.AnnouncementKey, sc.AnnouncementText); err != nil {
		return res, err
	}

	res.VersioningStatus, err = l.EnableVersioning(ctx)
	if err != nil && !errors.Is(err, storage.ErrNotSupported) {
		return res, err
	}
	if err != nil {
		l.logger.Warn("backend does not support versioning")
	}

	if item, ok := findItem(plan, sc.ReuploadKey); ok {
		if res.Versions, err = l.Reupload(ctx, item); err != nil {
			return res, err
		}
	} else {
		l.logger.WithField("key", sc.ReuploadKey).Warn("reupload key is not in the plan")
	}

	if res.Deleted, err = l.DeleteAndVerify(ctx, sc.DeleteKeys...); err != nil {
		return res, err
	}

	local := filepath.Join(l.dir, sc.DownloadName)
	res.PresignedURL, res.DownloadedBytes, err = l.PresignAndDownload(ctx, sc.PresignKey, sc.PresignExpiry, local)
	if err != nil && !errors.Is(err, storage.ErrNotSupported) {
		return res, err
	}
	if err != nil {
		l.logger.Warn("backend does not support presigned urls")
	}

	if sc.MirrorPrefix != "" {
		dir := sc.MirrorDir
		if !filepath.IsAbs(dir) {
			dir = filepath.Join(l.dir, dir)
		}
		if res.Mirror, err = l.MirrorPrefix(ctx, sc.MirrorPrefix, dir, sc.Concurrency); err != nil {
			return res, err
		}
	}

	l.logger.WithFields(logrus.Fields{
		"uploaded": res.Uploaded,
		"listed":   len(res.Listed),
		"versions": len(res.Versions),
		"deleted":  len(res.Deleted),
	}).Info("lms workload finished")
	return res, nil
}

func findItem(plan []PlanItem, key string) (PlanItem, bool) {
	for _, item := range plan {
		if item.Key == key {
			return item, true
		}
	}
	return PlanItem{}, false
}
