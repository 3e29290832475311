package main

import (
	"context"
	"log"
	"math/big"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"

	"github.com/parkgb/nftmarket/params"
	"github.com/parkgb/nftmarket/pkg/api"
	"github.com/parkgb/nftmarket/pkg/market"
	"github.com/parkgb/nftmarket/pkg/storage"
	"github.com/parkgb/nftmarket/pkg/token"
	"github.com/parkgb/nftmarket/pkg/util"
)

func main() {
	cfg := params.LoadFromEnv("")

	logger, err := util.NewLoggerWithFile(cfg.LogFile)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()
	sugar := logger.Sugar()

	// ---- Collaborators: payment token and asset registry ----
	deployerKey, err := ethcrypto.GenerateKey()
	if err != nil {
		sugar.Fatalw("deployer_key_failed", "err", err)
	}
	deployer := ethcrypto.PubkeyToAddress(deployerKey.PublicKey)

	usdt := token.NewERC20(cfg.Token.PaymentName, cfg.Token.PaymentSymbol, deployer, cfg.Token.PaymentSupply)
	nft := token.NewERC721(cfg.Token.AssetName, cfg.Token.AssetSymbol)
	sugar.Infow("tokens_deployed",
		"payment", usdt.Symbol(),
		"asset", nft.Symbol(),
		"deployer", deployer.Hex(),
		"supply", cfg.Token.PaymentSupply.String())

	// ---- Order store (optional) ----
	var store market.OrderStore
	var persisted []*market.Order
	if cfg.Storage.Persist && cfg.Storage.DataDir != "" {
		ps, err := storage.NewPebbleStore(cfg.Storage.DataDir)
		if err != nil {
			sugar.Fatalw("order_store_failed", "dir", cfg.Storage.DataDir, "err", err)
		}
		defer ps.Close()
		store = ps

		persisted, err = ps.LoadOpenOrders()
		if err != nil {
			sugar.Warnw("order_store_load_failed", "err", err)
		}
	}

	// ---- Market ----
	marketKey, err := ethcrypto.GenerateKey()
	if err != nil {
		sugar.Fatalw("market_key_failed", "err", err)
	}
	marketAddr := ethcrypto.PubkeyToAddress(marketKey.PublicKey)

	m, err := market.New(market.Config{
		Address:  marketAddr,
		Payments: usdt,
		Assets:   nft,
		Store:    store,
		Logger:   sugar,
	})
	if err != nil {
		sugar.Fatalw("market_init_failed", "err", err)
	}
	nft.RegisterReceiver(marketAddr, m)

	if len(persisted) > 0 {
		m.Preload(persisted)
		sugar.Infow("orders_restored", "count", len(persisted))
	}

	sugar.Infow("market_ready", "addr", marketAddr.Hex(), "open_orders", m.OrderCount())

	// ---- Demo accounts (optional) ----
	// DEMO_SEED=true mints a couple of assets and funds a buyer, so the
	// REST surface has something to show on a fresh start.
	if os.Getenv("DEMO_SEED") == "true" {
		seedDemo(m, usdt, nft, deployer, sugar)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ---- API server ----
	server := api.NewServer(m, usdt, nft, sugar)
	if err := server.Start(ctx, cfg.API.Addr); err != nil {
		sugar.Fatalw("api_server_failed", "err", err)
	}
}

func seedDemo(m *market.Market, usdt *token.ERC20, nft *token.ERC721, deployer common.Address, sugar *zap.SugaredLogger) {
	sellerKey, err := ethcrypto.GenerateKey()
	if err != nil {
		sugar.Fatalw("seed_key_failed", "err", err)
	}
	seller := ethcrypto.PubkeyToAddress(sellerKey.PublicKey)

	buyerKey, err := ethcrypto.GenerateKey()
	if err != nil {
		sugar.Fatalw("seed_key_failed", "err", err)
	}
	buyer := ethcrypto.PubkeyToAddress(buyerKey.PublicKey)

	id0 := nft.Mint(seller)
	id1 := nft.Mint(seller)

	// List both assets at the same demo price.
	price := new(big.Int)
	price.SetString("1c6bf52634000", 16)
	payload := price.Bytes()
	for _, id := range []uint64{id0, id1} {
		if err := nft.SafeTransferFrom(seller, seller, m.Address(), id, payload); err != nil {
			sugar.Fatalw("seed_listing_failed", "id", id, "err", err)
		}
	}

	// Fund the buyer and authorize the market to pull payment.
	funding := new(big.Int).Mul(price, big.NewInt(10))
	if err := usdt.Transfer(deployer, buyer, funding); err != nil {
		sugar.Fatalw("seed_funding_failed", "err", err)
	}
	if err := usdt.Approve(buyer, m.Address(), funding); err != nil {
		sugar.Fatalw("seed_approval_failed", "err", err)
	}

	sugar.Infow("demo_seeded",
		"seller", seller.Hex(),
		"buyer", buyer.Hex(),
		"listed", m.OrderCount(),
		"price", price.String())
}
