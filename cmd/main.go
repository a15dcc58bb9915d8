package main

import (
	"context"
	"github.com/asaskevich/EventBus"
	"github.com/goingbraindeadisolated/tg-yearend-helper-bot/internal/bot"
	"github.com/goingbraindeadisolated/tg-yearend-helper-bot/internal/config"
	"github.com/goingbraindeadisolated/tg-yearend-helper-bot/internal/flow"
	"github.com/goingbraindeadisolated/tg-yearend-helper-bot/internal/logger"
	"github.com/goingbraindeadisolated/tg-yearend-helper-bot/internal/metrics"
	"github.com/goingbraindeadisolated/tg-yearend-helper-bot/internal/repositories"
	"github.com/goingbraindeadisolated/tg-yearend-helper-bot/internal/services"
	log "github.com/sirupsen/logrus"
	"os/signal"
	"syscall"
	"time"
)

func main() {

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := config.Get()

	logger.Setup(cfg.Logger)
	defer logger.Cleanup()

	metrics.StartMetricsServer()

	script, err := flow.Load(cfg.Bot.ScriptPath)
	if err != nil {
		log.Fatalf("can't load script: %v", err)
	}

	dbContext, err := repositories.NewDbContext(cfg.DB.ConnectionString)
	if err != nil {
		log.Fatalf("can't create db context: %v", err)
	}
	defer dbContext.Close()

	err = dbContext.Migrate()
	if err != nil {
		log.Fatalf("can't migrate db context: %v", err)
	}

	users := repositories.NewUsersRepository(dbContext.DB)
	registrations := repositories.NewRegistrationsRepository(dbContext.DB)
	claims := repositories.NewClaimsRepository(dbContext.DB)
	data := repositories.NewDataRepository(dbContext.DB)

	bus := EventBus.New()

	tgbot, err := bot.NewBot(cfg.Bot.Token, bus, script, bot.Repositories{
		Users:         users,
		Registrations: registrations,
		Claims:        claims,
		Data:          data,
	}, bot.Options{
		AdminID:            cfg.Bot.AdminID,
		AssetsDir:          cfg.Bot.AssetsDir,
		PaymentLabelPrefix: cfg.Bot.PaymentLabelPrefix,
		ReceiptWindow:      time.Duration(cfg.Bot.ReceiptWindowHours) * time.Hour,
	})
	if err != nil {
		log.Fatalf("can't create bot: %v", err)
	}
	go tgbot.Run()

	_, err = services.NewBroadcaster(bus, tgbot.API(), users, cfg.Bot.BroadcastsPerSecond)
	if err != nil {
		log.Fatalf("can't create broadcaster: %v", err)
	}

	cleaner, err := services.NewClaimsCleaner(claims, bus, cfg.Bot.ClaimExpirationInHours)
	if err != nil {
		log.Fatalf("can't create claims cleaner: %v", err)
	}
	defer cleaner.Stop()

	<-ctx.Done()

	log.Info("Shutting down services...")
	tgbot.Stop()
	log.Info("Services stopped.")
}
