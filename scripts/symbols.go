// Command symbols lists tradable USDⓈ-M perpetual symbols ready to paste
// into the markets section of the config file.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/adshao/go-binance/v2/futures"
)

func main() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	client := futures.NewClient("", "")
	info, err := client.NewExchangeInfoService().Do(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, "ERROR: not able to fetch exchange info:", err)
		os.Exit(1)
	}

	count := 0
	for _, symbol := range info.Symbols {
		if symbol.Status != "TRADING" || symbol.ContractType != "PERPETUAL" {
			continue
		}
		fmt.Printf("{\"id\": %q},\n", symbol.Symbol)
		count++
	}
	fmt.Fprintf(os.Stderr, "%v tradable perpetual symbols\n", count)
}
