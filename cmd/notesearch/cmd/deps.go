package cmd

import (
	"context"
	"fmt"
	"io"
	"iter"
	"time"

	"note-search-go/internal/config"
	"note-search-go/internal/enrich"
	"note-search-go/internal/pipeline"
	"note-search-go/internal/repository"
	"note-search-go/internal/service"
	"note-search-go/pkg/database"
	"note-search-go/pkg/embedding"
	"note-search-go/pkg/es"
	"note-search-go/pkg/kafka"
	"note-search-go/pkg/log"
	"note-search-go/pkg/textrank"
	"note-search-go/pkg/tika"
)

func noop() {}

func (a *app) newTagger() (*enrich.TagExtractor, error) {
	ranker, err := textrank.New()
	if err != nil {
		return nil, err
	}
	return enrich.NewTagExtractor(ranker,
		enrich.WithLimitPhrases(a.cfg.Tagging.LimitPhrases),
		enrich.WithLimitSentences(a.cfg.Tagging.LimitSentences),
	), nil
}

// newExtractor 纯文本直接读取，其余格式交给 Tika。
func (a *app) newExtractor() pipeline.TextExtractor {
	return pipeline.NewRoutingExtractor(tika.NewClient(a.cfg.Tika))
}

// newEmbedder 返回向量提取器；配置了缓存时间时在前面加一层 Redis 缓存。
// Redis 不可用只影响缓存，不影响导入。
func (a *app) newEmbedder(ctx context.Context) (*enrich.EmbeddingExtractor, func()) {
	cfg := a.cfg.Embedding
	var client embedding.Client = embedding.NewClient(cfg)
	closeFn := noop

	if cfg.CacheTTLHours > 0 {
		rdb, err := database.NewRedis(ctx, a.cfg.Redis)
		if err != nil {
			log.Warnf("[CLI] Redis 不可用, 不使用向量缓存: %v", err)
		} else {
			store := embedding.NewRedisStore(rdb, time.Duration(cfg.CacheTTLHours)*time.Hour)
			client = embedding.NewCachedClient(client, store, cfg.Model)
			closeFn = func() { _ = rdb.Close() }
		}
	}
	return enrich.NewEmbeddingExtractor(client, cfg.Model), closeFn
}

// newReporter 配置了死信主题时把被拒文档投递到 Kafka，否则只写日志。
func (a *app) newReporter() (es.RejectionReporter, func(), error) {
	if a.cfg.Kafka.RejectTopic == "" {
		return es.LogReporter{}, noop, nil
	}
	publisher, err := kafka.NewRejectionPublisher(a.cfg.Kafka)
	if err != nil {
		return nil, nil, err
	}
	return publisher, func() {
		if err := publisher.Close(); err != nil {
			log.Warnf("[CLI] 关闭 Kafka 生产者失败: %v", err)
		}
	}, nil
}

// newRunService 配置了 DSN 时把导入批次写入 MySQL。台账不可用时退化为只写日志。
func (a *app) newRunService() (service.RunService, func()) {
	dsn := a.cfg.Database.MySQL.DSN
	if dsn == "" {
		return service.NewRunService(nil), noop
	}
	db, err := database.OpenMySQL(dsn)
	if err != nil {
		log.Warnf("[CLI] MySQL 不可用, 不记录导入台账: %v", err)
		return service.NewRunService(nil), noop
	}
	repo := repository.NewRunRepository(db)
	if err := repo.Migrate(); err != nil {
		log.Warnf("[CLI] 导入台账建表失败: %v", err)
	}
	return service.NewRunService(repo), func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
}

func (a *app) newSearchService() (service.SearchService, error) {
	client, err := es.NewClient(a.cfg.Elasticsearch)
	if err != nil {
		return nil, err
	}
	return service.NewSearchService(client, a.cfg.Search, a.defaultIndices()...), nil
}

func (a *app) defaultIndices() []string {
	return []string{a.cfg.Elasticsearch.NotesIndex, a.cfg.Elasticsearch.ArticlesIndex}
}

func (a *app) schemaFor(schema, index string) es.Schema {
	if schema == config.SchemaArticles {
		return es.ArticlesSchema(index, a.cfg.Embedding.Dimensions)
	}
	return es.NotesSchema(index)
}

// ingest 是所有导入命令共用的流程：重建索引，然后把条目经流水线批量写入。
func (a *app) ingest(ctx context.Context, out io.Writer, command, schema, source string, items iter.Seq2[pipeline.Item, error]) error {
	index, err := a.cfg.IndexFor(schema)
	if err != nil {
		return err
	}
	tagger, err := a.newTagger()
	if err != nil {
		return err
	}
	var opts []pipeline.Option
	if schema == config.SchemaArticles && a.cfg.Embedding.Enabled {
		embedder, closeEmbedder := a.newEmbedder(ctx)
		defer closeEmbedder()
		opts = append(opts, pipeline.WithEmbedder(embedder))
	}
	p, err := pipeline.New(schema, index, a.newExtractor(), tagger, opts...)
	if err != nil {
		return err
	}
	client, err := es.NewClient(a.cfg.Elasticsearch)
	if err != nil {
		return err
	}
	reporter, closeReporter, err := a.newReporter()
	if err != nil {
		return err
	}
	defer closeReporter()
	runs, closeRuns := a.newRunService()
	defer closeRuns()

	run := runs.Start(command, index, source)
	if err := es.CreateIndex(ctx, client, a.schemaFor(schema, index)); err != nil {
		runs.Finish(run, pipeline.Stats{}, es.UploadStats{}, err)
		return err
	}
	log.Infof("[CLI] 索引 '%s' 已重建, 开始导入: %s", index, source)

	indexer := es.NewBulkIndexer(client, es.WithBatchSize(a.cfg.Elasticsearch.BatchSize), es.WithReporter(reporter))
	stats, err := indexer.Upload(ctx, p.Process(ctx, items))
	ps := p.Stats()
	runs.Finish(run, ps, stats, err)
	if err != nil {
		return err
	}

	_, err = fmt.Fprintf(out, "Indexed %d documents into %q (rejected %d, empty %d, failed %d)\n",
		stats.Indexed, index, stats.Rejected, ps.Empty, ps.Failed)
	return err
}
