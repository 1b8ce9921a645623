package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

const baseURL = "http://localhost:8080"

// Drives the main read paths against a running server and a populated
// backend. BRAND_ID selects the brand context; defaults to "demo".
func main() {
	// Wait for server to start
	time.Sleep(2 * time.Second)

	brandID := os.Getenv("BRAND_ID")
	if brandID == "" {
		brandID = "demo"
	}
	prefix := "/brands/" + brandID

	fmt.Println("Starting smoke test for brand", brandID)

	fmt.Println("1. Fetching graph view...")
	if !sendRequest("GET", prefix+"/graph", nil) {
		fmt.Println("FAILED: graph view")
		os.Exit(1)
	}
	fmt.Println("PASSED: graph view")

	fmt.Println("2. Refreshing snapshot...")
	if !sendRequest("POST", prefix+"/refresh", nil) {
		fmt.Println("FAILED: refresh")
		os.Exit(1)
	}
	fmt.Println("PASSED: refresh")

	fmt.Println("3. Listing duplicate candidates...")
	if !sendRequest("GET", prefix+"/duplicates?threshold=0.7", nil) {
		fmt.Println("FAILED: duplicates")
		os.Exit(1)
	}
	fmt.Println("PASSED: duplicates")

	fmt.Println("4. Listing contradictions...")
	if !sendRequest("GET", prefix+"/contradictions", nil) {
		fmt.Println("FAILED: contradictions")
		os.Exit(1)
	}
	fmt.Println("PASSED: contradictions")

	fmt.Println("5. Listing clusters...")
	if !sendRequest("GET", prefix+"/clusters", nil) {
		fmt.Println("FAILED: clusters")
		os.Exit(1)
	}
	fmt.Println("PASSED: clusters")
}

func sendRequest(method, endpoint string, payload interface{}) bool {
	var body io.Reader
	if payload != nil {
		jsonBytes, _ := json.Marshal(payload)
		body = bytes.NewBuffer(jsonBytes)
	}

	req, err := http.NewRequest(method, baseURL+endpoint, body)
	if err != nil {
		fmt.Printf("Error creating request: %v\n", err)
		return false
	}
	req.Header.Set("Content-Type", "application/json")

	client := &http.Client{}
	resp, err := client.Do(req)
	if err != nil {
		fmt.Printf("Error sending request: %v\n", err)
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		fmt.Printf("Request failed with status %d: %s\n", resp.StatusCode, string(respBody))
		return false
	}

	respBody, _ := io.ReadAll(resp.Body)
	fmt.Printf("Response: %s\n", string(respBody))

	return true
}
