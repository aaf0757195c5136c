package utils

import (
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

var Logger = logrus.New()

func init() {
	// Logger settings
	Logger.SetOutput(os.Stdout)
	Logger.SetFormatter(&logrus.JSONFormatter{})
	Logger.SetLevel(logrus.InfoLevel)
}

// SetLevel parses a level name and applies it to Logger. Unknown names fall back to info.
func SetLevel(level string) {
	lvl, err := logrus.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		lvl = logrus.InfoLevel
	}
	Logger.SetLevel(lvl)
}

// LogOrder logs an accepted order
func LogOrder(log logrus.FieldLogger, id uint64, symbol, side string, size int64, account string) {
	log.WithFields(logrus.Fields{
		"order_id": id,
		"symbol":   symbol,
		"side":     side,
		"size":     size,
		"account":  account,
	}).Debug("Order accepted")
}

// LogFill logs a single fill
func LogFill(log logrus.FieldLogger, orderID uint64, symbol, side, price string, size int64, account string) {
	log.WithFields(logrus.Fields{
		"order_id": orderID,
		"symbol":   symbol,
		"side":     side,
		"price":    price,
		"size":     size,
		"account":  account,
	}).Info("Order filled")
}

// LogMatchResult logs matching results
func LogMatchResult(symbol string, fills int) {
	Logger.WithFields(logrus.Fields{
		"symbol": symbol,
		"fills":  fills,
	}).Debug("Tick matching result")
}

// LogError logs errors
func LogError(err error) {
	Logger.WithFields(logrus.Fields{
		"error": err.Error(),
	}).Error("Error occurred")
}
