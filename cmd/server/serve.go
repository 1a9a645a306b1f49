package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"linebot-relay-go/internal/handler"
	"linebot-relay-go/internal/repository"
	"linebot-relay-go/internal/service"
	"linebot-relay-go/pkg/kafka"
	"linebot-relay-go/pkg/line"
	"linebot-relay-go/pkg/llm"
	"linebot-relay-go/pkg/lock"
	"linebot-relay-go/pkg/log"
	"linebot-relay-go/pkg/token"
)

func newServeCmd(load configLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the webhook and admin HTTP server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			defer log.Sync()
			if err := cfg.Validate(); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			// 1. 初始化数据库和 Redis
			st, err := openStores(ctx, cfg)
			if err != nil {
				return err
			}
			defer st.close()
			if err := st.migrate(); err != nil {
				return err
			}

			// 2. 初始化 Repository
			turnRepo := repository.NewTurnRepository(st.db)
			sessionRepo := repository.NewSessionRepository(st.db)
			ruleRepo := repository.NewPromptRuleRepository(st.db)
			keywordRepo := repository.NewSkipKeywordRepository(st.db)
			profileRepo := repository.NewUserProfileRepository(st.db)
			adminRepo := repository.NewAdminUserRepository(st.db)

			var (
				events    repository.EventRepository
				blacklist repository.TokenBlacklist
				locker    lock.UserLocker = lock.NewLocalLocker()
			)
			if st.rdb != nil {
				events = repository.NewEventRepository(st.rdb, cfg.Chat.DedupeTTL())
				blacklist = repository.NewTokenBlacklist(st.rdb)
			}
			if cfg.Chat.Locker == "redis" {
				locker = lock.NewRedisLocker(st.rdb, cfg.Chat.LockTTL())
			}

			// 3. 初始化 Service (依赖注入)
			jwtManager := token.NewJWTManager(cfg.JWT.Secret, cfg.JWT.AccessTokenExpireHours)
			llmClient := llm.NewClient(cfg.LLM, cfg.Chat.CompletionTimeout())
			lineClient, err := line.NewClient(cfg.LINE)
			if err != nil {
				return err
			}

			history := service.NewHistoryStore(turnRepo, sessionRepo)
			profiles := service.NewProfileService(profileRepo, cfg.Chat.DefaultLanguage)
			relay := service.NewRelayService(service.RelayDeps{
				Skip:         service.NewSkipFilter(keywordRepo),
				Commands:     service.NewCommandRouter(history, profiles, cfg.Chat.HistoryLimit),
				Profiles:     profiles,
				Resolver:     service.NewPromptResolver(ruleRepo, sessionRepo, history),
				History:      history,
				Orchestrator: service.NewOrchestrator(history, llmClient, cfg.Chat.HistoryLimit, cfg.Chat.CompletionTimeout()),
				Messenger:    lineClient,
				Locker:       locker,
			})
			authService := service.NewAuthService(adminRepo, blacklist, jwtManager)
			adminService := service.NewAdminService(ruleRepo, keywordRepo, turnRepo)

			// 4. 选择分发方式
			var (
				dispatcher   service.Dispatcher
				inline       *service.InlineDispatcher
				consumerDone = make(chan struct{})
			)
			switch cfg.Chat.Dispatch {
			case "kafka":
				producer := kafka.NewProducer(cfg.Kafka)
				defer func() {
					if err := producer.Close(); err != nil {
						log.Errorf("关闭 Kafka 生产者失败: %v", err)
					}
				}()
				dispatcher = producer
				consumer := kafka.NewConsumer(cfg.Kafka, relay)
				go func() {
					defer close(consumerDone)
					consumer.Run(ctx)
				}()
			default:
				inline = service.NewInlineDispatcher(relay, 2*cfg.Chat.CompletionTimeout())
				dispatcher = inline
				close(consumerDone)
			}

			// 5. 设置 Gin 模式并注册路由
			gin.SetMode(cfg.Server.Mode)
			r := handler.NewRouter(handler.RouterDeps{
				Webhook:    handler.NewWebhookHandler(cfg.LINE.ChannelSecret, events, dispatcher),
				Auth:       handler.NewAuthHandler(authService),
				Admin:      handler.NewAdminHandler(adminService),
				JWTManager: jwtManager,
				Blacklist:  blacklist,
			})

			// 启动 HTTP 服务器并实现优雅停机
			srv := &http.Server{
				Addr:              fmt.Sprintf(":%s", cfg.Server.Port),
				Handler:           r,
				ReadHeaderTimeout: 10 * time.Second,
			}
			serveErr := make(chan error, 1)
			go func() {
				log.Infof("服务启动于 %s (dispatch=%s, locker=%s)", srv.Addr, cfg.Chat.Dispatch, cfg.Chat.Locker)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					serveErr <- err
				}
			}()

			select {
			case <-ctx.Done():
				log.Info("接收到停机信号，正在关闭服务...")
			case err := <-serveErr:
				return fmt.Errorf("HTTP 服务监听失败: %w", err)
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				log.Errorf("HTTP 服务器关闭失败: %v", err)
			}
			if inline != nil {
				inline.Wait()
			}
			<-consumerDone
			log.Info("服务已优雅关闭")
			return nil
		},
	}
}
