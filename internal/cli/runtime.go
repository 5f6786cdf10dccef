package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"mindtree/internal/app"
	"mindtree/internal/archive"
	"mindtree/internal/config"
	"mindtree/internal/eventstream"
	"mindtree/internal/eventstream/kafka"
	"mindtree/internal/eventstream/nop"
	"mindtree/internal/history"
	"mindtree/internal/search"
	"mindtree/internal/store"
)

// runtime holds the wired service and everything that must be closed with it.
type runtime struct {
	cfg     config.Config
	logger  *zap.Logger
	store   store.Store
	service *app.Service
	closers []func() error
}

func newRuntime(ctx context.Context, cfg config.Config, logger *zap.Logger) (*runtime, error) {
	rt := &runtime{cfg: cfg, logger: logger}

	st, err := store.Open(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	rt.store = st
	rt.closers = append(rt.closers, st.Close)

	deps := app.Deps{Logger: logger}

	var index search.Index
	if strings.TrimSpace(cfg.MeiliURL) != "" {
		meili := search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey, logger)
		rt.closers = append(rt.closers, func() error { meili.Close(); return nil })
		index = meili
		logger.Info("using meilisearch", zap.String("url", cfg.MeiliURL))
	}
	deps.Search = search.NewService(index, search.NewStoreScan(st), logger)

	if strings.TrimSpace(cfg.HistoryDir) != "" {
		deps.History = history.New(cfg.HistoryDir, cfg.HistoryAuthor)
		logger.Info("recording history", zap.String("dir", cfg.HistoryDir))
	}

	var publisher eventstream.Publisher = nop.NewPublisher()
	if len(cfg.KafkaBrokers) > 0 {
		kp, err := kafka.NewPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		if err != nil {
			rt.Close()
			return nil, fmt.Errorf("kafka publisher: %w", err)
		}
		publisher = kp
		logger.Info("publishing events", zap.Strings("brokers", cfg.KafkaBrokers), zap.String("topic", cfg.KafkaTopic))
	}
	deps.Events = publisher

	archiver, err := archive.New(archive.Config{
		Endpoint:  cfg.ArchiveEndpoint,
		AccessKey: cfg.ArchiveAccessKey,
		SecretKey: cfg.ArchiveSecretKey,
		Bucket:    cfg.ArchiveBucket,
		UseSSL:    cfg.ArchiveUseSSL,
	})
	switch {
	case err == nil:
		deps.Archive = archiver
		logger.Info("archiving to object storage", zap.String("endpoint", cfg.ArchiveEndpoint), zap.String("bucket", cfg.ArchiveBucket))
	case errors.Is(err, archive.ErrDisabled):
	default:
		rt.Close()
		return nil, fmt.Errorf("archive: %w", err)
	}

	rt.service = app.New(st, deps)
	rt.closers = append(rt.closers, rt.service.Close)
	return rt, nil
}

// Close releases resources in reverse order of acquisition.
func (r *runtime) Close() error {
	var errs []error
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	r.closers = nil
	return errors.Join(errs...)
}
