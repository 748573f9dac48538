// device-sim 模拟 ESP32 设备向 vitalwatch-data 上报遥测。
package main

import (
	"flag"
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/go-resty/resty/v2"
)

func main() {
	var (
		baseURL  = flag.String("url", "http://localhost:8080", "vitalwatch-data base URL")
		kode     = flag.String("kode", "ESP32-001", "device code (kode_perangkat)")
		count    = flag.Int("count", 0, "number of readings to send (0 = forever)")
		interval = flag.Duration("interval", 2*time.Second, "delay between readings")
		baseHR   = flag.Float64("hr", 72, "baseline heart rate (BPM)")
		baseTemp = flag.Float64("temp", 36.6, "baseline body temperature (°C)")
	)
	flag.Parse()

	client := resty.New().
		SetBaseURL(*baseURL).
		SetTimeout(5 * time.Second).
		SetRetryCount(2)

	sent := 0
	for {
		payload := map[string]any{
			"kode_perangkat": *kode,
			"heart_rate_bpm": *baseHR + rand.Float64()*10 - 5,
			"body_temp_c":    *baseTemp + rand.Float64()*0.8 - 0.4,
			"timestamp":      time.Now().Format(time.RFC3339),
		}

		resp, err := client.R().
			SetHeader("Content-Type", "application/json").
			SetBody(payload).
			Post("/iot/api/v1/ingest")
		if err != nil {
			fmt.Fprintf(os.Stderr, "send failed: %v\n", err)
		} else {
			fmt.Printf("[%s] %s -> %s %s\n",
				time.Now().Format("15:04:05"), *kode, resp.Status(), resp.String())
		}

		sent++
		if *count > 0 && sent >= *count {
			return
		}
		time.Sleep(*interval)
	}
}
