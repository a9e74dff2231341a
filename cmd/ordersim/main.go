// ordersim 对运行中的服务做端到端压测：并发下单、并发重复推进同一状态、走完整个配送流程。
// 依赖 cmd/seed 写入的演示账号。
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"sort"
	"sync"
	"time"
)

// Result 记录单次请求的 HTTP 结果，便于聚合统计。
type Result struct {
	Status int
	Body   string
	Err    error
}

type envelope struct {
	Code  int             `json:"code"`
	Data  json.RawMessage `json:"data"`
	Error string          `json:"error"`
	Msg   string          `json:"msg"`
}

type apiClient struct {
	http  *http.Client
	base  string
	token string
}

func main() {
	baseURL := flag.String("base", "http://localhost:8080", "server base url")
	studentLogin := flag.String("student", "student@campus.local", "student login")
	ownerLogin := flag.String("owner", "owner@campus.local", "shop owner login")
	password := flag.String("password", "Campus@123", "password of both accounts")
	proofURL := flag.String("proof", "/uploads/demo-proof.png", "payment proof url sent with each order")

	nOrders := flag.Int("orders", 50, "orders to place concurrently")
	concurrency := flag.Int("c", 20, "max concurrency")
	racers := flag.Int("racers", 10, "duplicate concurrent transitions on one order")
	flag.Parse()

	hc := &http.Client{Timeout: 5 * time.Second}
	student := &apiClient{http: hc, base: *baseURL}
	owner := &apiClient{http: hc, base: *baseURL}

	me, err := student.login(*studentLogin, *password)
	if err != nil {
		panic(fmt.Sprintf("student login failed: %v", err))
	}
	if _, err := owner.login(*ownerLogin, *password); err != nil {
		panic(fmt.Sprintf("owner login failed: %v", err))
	}
	fmt.Println("login ok, college:", me.CollegeID)

	order, err := buildOrder(student, me.CollegeID, *proofURL)
	if err != nil {
		panic(fmt.Sprintf("build order failed: %v", err))
	}

	// 1) 并发下单：超过限流阈值的请求应返回 429
	fmt.Printf("start create test: shop=%s orders=%d concurrency=%d\n", order["shopId"], *nOrders, *concurrency)
	results := fanOut(*nOrders, *concurrency, func(int) Result {
		return student.do(http.MethodPost, "/api/orders", order)
	})
	printSummary("create", results)

	orderID := firstOrderID(results)
	if orderID == "" {
		fmt.Println("no order created, stop")
		return
	}

	// 2) 并发推进同一订单：只能有一个请求成功，其余 409 或 422
	if r := owner.do(http.MethodPatch, "/api/orders/"+orderID, map[string]string{"status": "accepted"}); r.Status != http.StatusOK {
		panic(fmt.Sprintf("accept failed: %d %s", r.Status, r.Body))
	}
	fmt.Printf("\nstart race test: order=%s racers=%d\n", orderID, *racers)
	race := fanOut(*racers, *racers, func(int) Result {
		return owner.do(http.MethodPatch, "/api/orders/"+orderID, map[string]string{"status": "preparing"})
	})
	printSummary("race", race)
	if n := countStatus(race, http.StatusOK); n != 1 {
		fmt.Printf("  WARNING: expected exactly one winner, got %d\n", n)
	}

	// 3) 走完剩余流程
	for _, next := range []string{"out_for_delivery", "reached_location", "delivered"} {
		r := owner.do(http.MethodPatch, "/api/orders/"+orderID, map[string]string{"status": next})
		fmt.Printf("\n-> %s: %d", next, r.Status)
	}
	fmt.Println()

	r := student.do(http.MethodGet, "/api/orders/"+orderID+"/timeline", nil)
	fmt.Printf("timeline: %d %s\n", r.Status, r.Body)
}

type session struct {
	ID        string `json:"id"`
	CollegeID string `json:"collegeId"`
}

func (c *apiClient) login(login, password string) (session, error) {
	r := c.do(http.MethodPost, "/api/auth/login", map[string]string{"login": login, "password": password})
	var out struct {
		Token string  `json:"token"`
		User  session `json:"user"`
	}
	if err := decode(r, &out); err != nil {
		return session{}, err
	}
	c.token = out.Token
	return out.User, nil
}

// buildOrder 取第一家有商品的附近店铺，每样商品各买一份。
func buildOrder(c *apiClient, collegeID, proofURL string) (map[string]any, error) {
	r := c.do(http.MethodGet, "/api/shops/nearby?collegeId="+collegeID, nil)
	var shops []struct {
		ID       string `json:"id"`
		Products []struct {
			ID    string `json:"id"`
			Price string `json:"price"`
		} `json:"products"`
	}
	if err := decode(r, &shops); err != nil {
		return nil, err
	}
	for _, s := range shops {
		if len(s.Products) == 0 {
			continue
		}
		items := make([]map[string]any, 0, len(s.Products))
		for _, p := range s.Products {
			items = append(items, map[string]any{"productId": p.ID, "quantity": 1, "price": p.Price})
		}
		return map[string]any{
			"shopId":          s.ID,
			"collegeId":       collegeID,
			"hostelBranch":    "Hostel B",
			"paymentProofUrl": proofURL,
			"items":           items,
		}, nil
	}
	return nil, fmt.Errorf("no nearby shop with products for college %s", collegeID)
}

func fanOut(total, concurrency int, fn func(idx int) Result) []Result {
	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup
	results := make([]Result, total)

	for i := 0; i < total; i++ {
		wg.Add(1)
		sem <- struct{}{}
		go func(idx int) {
			defer wg.Done()
			defer func() { <-sem }()
			results[idx] = fn(idx)
		}(i)
	}

	wg.Wait()
	return results
}

func (c *apiClient) do(method, path string, body any) Result {
	var rd io.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, c.base+path, rd)
	if err != nil {
		return Result{Err: err}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return Result{Err: err}
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	return Result{Status: resp.StatusCode, Body: string(b)}
}

func decode(r Result, out any) error {
	if r.Err != nil {
		return r.Err
	}
	if r.Status >= 300 {
		return fmt.Errorf("status=%d body=%s", r.Status, r.Body)
	}
	var env envelope
	if err := json.Unmarshal([]byte(r.Body), &env); err != nil {
		return err
	}
	return json.Unmarshal(env.Data, out)
}

func firstOrderID(results []Result) string {
	for _, r := range results {
		var o struct {
			ID string `json:"id"`
		}
		if decode(r, &o) == nil && o.ID != "" {
			return o.ID
		}
	}
	return ""
}

func countStatus(results []Result, code int) int {
	n := 0
	for _, r := range results {
		if r.Err == nil && r.Status == code {
			n++
		}
	}
	return n
}

// printSummary 聚合输出不同状态码分布。
func printSummary(name string, results []Result) {
	count := map[int]int{}
	errCount := 0
	for _, r := range results {
		if r.Err != nil {
			errCount++
			continue
		}
		count[r.Status]++
	}
	codes := make([]int, 0, len(count))
	for code := range count {
		codes = append(codes, code)
	}
	sort.Ints(codes)

	fmt.Printf("[%s] http status summary:\n", name)
	for _, code := range codes {
		fmt.Printf("  %d -> %d\n", code, count[code])
	}
	if errCount > 0 {
		fmt.Printf("  errors -> %d\n", errCount)
	}
}
