package main

import (
	"context"
	"fmt"

	"sweepsapp/games"
	"sweepsapp/models"
	"sweepsapp/services"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

type seeder struct {
	store    *services.StoreService
	games    *services.GameService
	jackpots *services.JackpotService
}

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func defaultPackages() []models.Package {
	popular, best := "Most popular", "Best value"
	return []models.Package{
		{Name: "Starter", PriceUSD: d("4.99"), GoldCoins: d("5000"), BonusSweepsCoins: d("5"), SortOrder: 1, Active: true},
		{Name: "Player", PriceUSD: d("9.99"), GoldCoins: d("12000"), BonusSweepsCoins: d("10"), SortOrder: 2, Active: true, Badge: &popular},
		{Name: "High Roller", PriceUSD: d("49.99"), GoldCoins: d("65000"), BonusSweepsCoins: d("50"), SortOrder: 3, Active: true},
		{Name: "Whale", PriceUSD: d("99.99"), GoldCoins: d("140000"), BonusSweepsCoins: d("100"), SortOrder: 4, Active: true, Badge: &best},
	}
}

func defaultPools() []models.JackpotPool {
	return []models.JackpotPool{
		{Name: "Mini", Currency: "SC", SeedAmount: d("50"), ContributionRate: d("0.005"), MustHitBy: d("250"), Active: true},
		{Name: "Grand", Currency: "SC", SeedAmount: d("1000"), ContributionRate: d("0.01"), MustHitBy: d("10000"), Active: true},
		{Name: "Gold Rush", Currency: "GC", SeedAmount: d("100000"), ContributionRate: d("0.01"), MustHitBy: d("1000000"), Active: true},
	}
}

// rtp reports a house engine's return as a percentage.
func rtp(kind string) decimal.Decimal {
	g, err := games.ForCategory(kind)
	if err != nil {
		return d("96")
	}
	return g.ExpectedRTP().Mul(decimal.NewFromInt(100)).Round(2)
}

func defaultGames(pools map[string]int64) []models.Game {
	withPool := func(g models.Game, pool string) models.Game {
		if id, ok := pools[pool]; ok {
			g.JackpotPoolID = &id
		}
		return g
	}
	return []models.Game{
		withPool(models.Game{Slug: "lucky-sevens", Name: "Lucky Sevens", Category: games.KindSlots, Provider: models.ProviderHouse,
			RTP: rtp(games.KindSlots), MinBet: d("0.10"), MaxBet: d("100"), Active: true, SortOrder: 1}, "Grand"),
		withPool(models.Game{Slug: "fruit-frenzy", Name: "Fruit Frenzy", Category: games.KindSlots, Provider: models.ProviderHouse,
			RTP: rtp(games.KindSlots), MinBet: d("0.20"), MaxBet: d("50"), Active: true, SortOrder: 2}, "Mini"),
		withPool(models.Game{Slug: "gold-scratch", Name: "Gold Scratch", Category: games.KindScratch, Provider: models.ProviderHouse,
			RTP: rtp(games.KindScratch), MinBet: d("1"), MaxBet: d("20"), Active: true, SortOrder: 1}, "Gold Rush"),
		{Slug: "texas-holdem", Name: "Texas Hold'em", Category: games.KindPoker, Provider: "pokerco",
			RTP: d("97.5"), MinBet: d("1"), MaxBet: d("500"), Active: true, SortOrder: 1},
		{Slug: "bingo-75", Name: "Bingo 75", Category: games.KindBingo, Provider: "bingohall",
			RTP: d("92"), MinBet: d("0.50"), MaxBet: d("25"), Active: true, SortOrder: 1},
		{Slug: "match-day", Name: "Match Day", Category: games.KindSportsbook, Provider: "sportsfeed",
			RTP: d("94"), MinBet: d("1"), MaxBet: d("1000"), Active: true, SortOrder: 1},
	}
}

// run creates what is missing. Packages and pools are matched by name, games
// are upserted by slug so re-running refreshes their limits.
func (s seeder) run(ctx context.Context) error {
	existing, err := s.store.ListAll(ctx)
	if err != nil {
		return err
	}
	have := map[string]bool{}
	for _, p := range existing {
		have[p.Name] = true
	}
	for _, p := range defaultPackages() {
		if have[p.Name] {
			continue
		}
		if _, err := s.store.Create(ctx, p); err != nil {
			return fmt.Errorf("failed to seed package %s: %w", p.Name, err)
		}
		logrus.WithField("package", p.Name).Info("Seeded package")
	}

	pools, err := s.jackpots.ListAll(ctx)
	if err != nil {
		return err
	}
	poolIDs := map[string]int64{}
	for _, p := range pools {
		poolIDs[p.Name] = p.ID
	}
	for _, p := range defaultPools() {
		if _, ok := poolIDs[p.Name]; ok {
			continue
		}
		created, err := s.jackpots.Create(ctx, p)
		if err != nil {
			return fmt.Errorf("failed to seed pool %s: %w", p.Name, err)
		}
		poolIDs[created.Name] = created.ID
		logrus.WithField("pool", p.Name).Info("Seeded jackpot pool")
	}

	for _, g := range defaultGames(poolIDs) {
		if _, err := s.games.UpsertGame(ctx, g); err != nil {
			return fmt.Errorf("failed to seed game %s: %w", g.Slug, err)
		}
	}
	logrus.Info("✅ Seed complete")
	return nil
}
