package params

import (
	"math/big"
	"os"

	"github.com/joho/godotenv"
)

type API struct {
	Addr string
}

type Storage struct {
	// DataDir holds the Pebble order store. Empty disables persistence.
	DataDir string
	Persist bool
}

type Token struct {
	PaymentName   string
	PaymentSymbol string
	// PaymentSupply is minted to the deployer at startup, in smallest units.
	PaymentSupply *big.Int
	AssetName     string
	AssetSymbol   string
}

type Config struct {
	API     API
	Storage Storage
	Token   Token
	LogFile string
}

func Default() Config {
	// 1e26 smallest units, the cUSDT deployment supply.
	supply, _ := new(big.Int).SetString("100000000000000000000000000", 10)
	return Config{
		API:     API{Addr: ":8080"},
		Storage: Storage{DataDir: "data/orders", Persist: true},
		Token: Token{
			PaymentName:   "chain USDT",
			PaymentSymbol: "cUSDT",
			PaymentSupply: supply,
			AssetName:     "NFT Market Token",
			AssetSymbol:   "NFTM",
		},
		LogFile: "data/marketd.log",
	}
}

// LoadFromEnv loads configuration from a .env file (if present) and
// environment variables. Priority: ENV > .env file > defaults.
func LoadFromEnv(envPath string) Config {
	cfg := Default()

	if envPath != "" {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load()
	}

	if addr := os.Getenv("API_ADDR"); addr != "" {
		cfg.API.Addr = addr
	}
	if logFile := os.Getenv("LOG_FILE"); logFile != "" {
		cfg.LogFile = logFile
	}
	if dataDir := os.Getenv("DATA_DIR"); dataDir != "" {
		cfg.Storage.DataDir = dataDir
	}
	if persist := os.Getenv("PERSIST"); persist != "" {
		cfg.Storage.Persist = persist == "true"
	}
	if supply := os.Getenv("PAYMENT_SUPPLY"); supply != "" {
		if v, ok := new(big.Int).SetString(supply, 10); ok && v.Sign() > 0 {
			cfg.Token.PaymentSupply = v
		}
	}

	return cfg
}
