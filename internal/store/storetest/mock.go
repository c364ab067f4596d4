// Package storetest provides an in-memory store.Store for tests.
package storetest

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"byteshop/internal/models"
	"byteshop/internal/store"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func requireElevated(ctx context.Context) error {
	if !store.IsElevated(ctx) {
		return store.ErrNotElevated
	}
	return nil
}

// MockStore is an in-memory store.Store for tests. InTx runs transactions one at a
// time, snapshots all tables and restores them when the callback fails.
type MockStore struct {
	mu   sync.RWMutex
	txMu sync.Mutex

	users      map[string]*models.User
	products   map[string]*models.Product
	cart       map[string]*models.CartItem
	orders     map[string]*models.Order
	orderItems map[string][]models.OrderItem
	movements  []models.StockMovement

	// Error injection for testing error paths
	ErrorOnNextCall error
	failOn          map[string]error
	clock           time.Time
}

func NewMockStore() *MockStore {
	return &MockStore{
		users:      make(map[string]*models.User),
		products:   make(map[string]*models.Product),
		cart:       make(map[string]*models.CartItem),
		orders:     make(map[string]*models.Order),
		orderItems: make(map[string][]models.OrderItem),
		failOn:     make(map[string]error),
		clock:      time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

// FailOn makes every call to the named method return err until cleared with a nil err.
func (m *MockStore) FailOn(method string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.failOn, method)
		return
	}
	m.failOn[method] = err
}

func (m *MockStore) check(method string) error {
	if m.ErrorOnNextCall != nil {
		err := m.ErrorOnNextCall
		m.ErrorOnNextCall = nil
		return err
	}
	return m.failOn[method]
}

// now returns a strictly increasing timestamp so ordering by creation is stable.
func (m *MockStore) now() time.Time {
	m.clock = m.clock.Add(time.Second)
	return m.clock
}

func (m *MockStore) Ping(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.check("Ping")
}

type mockSnapshot struct {
	users      map[string]models.User
	products   map[string]models.Product
	cart       map[string]models.CartItem
	orders     map[string]models.Order
	orderItems map[string][]models.OrderItem
	movements  []models.StockMovement
}

func (m *MockStore) snapshot() mockSnapshot {
	s := mockSnapshot{
		users:      make(map[string]models.User, len(m.users)),
		products:   make(map[string]models.Product, len(m.products)),
		cart:       make(map[string]models.CartItem, len(m.cart)),
		orders:     make(map[string]models.Order, len(m.orders)),
		orderItems: make(map[string][]models.OrderItem, len(m.orderItems)),
		movements:  append([]models.StockMovement(nil), m.movements...),
	}
	for k, v := range m.users {
		s.users[k] = *v
	}
	for k, v := range m.products {
		s.products[k] = *v
	}
	for k, v := range m.cart {
		s.cart[k] = *v
	}
	for k, v := range m.orders {
		s.orders[k] = *v
	}
	for k, v := range m.orderItems {
		s.orderItems[k] = append([]models.OrderItem(nil), v...)
	}
	return s
}

func (m *MockStore) restore(s mockSnapshot) {
	m.users = make(map[string]*models.User, len(s.users))
	for k, v := range s.users {
		v := v
		m.users[k] = &v
	}
	m.products = make(map[string]*models.Product, len(s.products))
	for k, v := range s.products {
		v := v
		m.products[k] = &v
	}
	m.cart = make(map[string]*models.CartItem, len(s.cart))
	for k, v := range s.cart {
		v := v
		m.cart[k] = &v
	}
	m.orders = make(map[string]*models.Order, len(s.orders))
	for k, v := range s.orders {
		v := v
		m.orders[k] = &v
	}
	m.orderItems = s.orderItems
	m.movements = s.movements
}

func (m *MockStore) InTx(ctx context.Context, fn func(q store.Queries) error) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()

	m.mu.Lock()
	if err := m.check("InTx"); err != nil {
		m.mu.Unlock()
		return err
	}
	snap := m.snapshot()
	m.mu.Unlock()

	if err := fn(m); err != nil {
		m.mu.Lock()
		m.restore(snap)
		m.mu.Unlock()
		return err
	}
	return nil
}

// ---- users

func (m *MockStore) CreateUser(ctx context.Context, u *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check("CreateUser"); err != nil {
		return err
	}
	u.Email = strings.ToLower(u.Email)
	for _, existing := range m.users {
		if existing.Email == u.Email {
			return store.ErrDuplicate
		}
	}
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	u.CreatedAt = m.now()
	u.UpdatedAt = u.CreatedAt
	cp := *u
	m.users[u.ID] = &cp
	return nil
}

func (m *MockStore) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.check("GetUserByID"); err != nil {
		return nil, err
	}
	u, ok := m.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *MockStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.check("GetUserByEmail"); err != nil {
		return nil, err
	}
	email = strings.ToLower(email)
	for _, u := range m.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *MockStore) UpdateUserProfile(ctx context.Context, id, fullName string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check("UpdateUserProfile"); err != nil {
		return nil, err
	}
	u, ok := m.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	u.FullName = fullName
	u.UpdatedAt = m.now()
	cp := *u
	return &cp, nil
}

func (m *MockStore) UpdateUserRole(ctx context.Context, id string, role models.Role) (*models.User, error) {
	if err := requireElevated(ctx); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check("UpdateUserRole"); err != nil {
		return nil, err
	}
	u, ok := m.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	u.Role = role
	u.UpdatedAt = m.now()
	cp := *u
	return &cp, nil
}

func (m *MockStore) ListUsers(ctx context.Context) ([]models.User, error) {
	if err := requireElevated(ctx); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.check("ListUsers"); err != nil {
		return nil, err
	}
	users := make([]models.User, 0, len(m.users))
	for _, u := range m.users {
		users = append(users, *u)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].CreatedAt.After(users[j].CreatedAt) })
	return users, nil
}

// ---- products

func (m *MockStore) productMatches(p *models.Product, f models.ProductFilter) bool {
	if !f.IncludeInactive && !p.IsActive {
		return false
	}
	if f.Category != "" && p.Category != f.Category {
		return false
	}
	if f.MinPrice != nil && p.Price.LessThan(*f.MinPrice) {
		return false
	}
	if f.MaxPrice != nil && p.Price.GreaterThan(*f.MaxPrice) {
		return false
	}
	if f.InStock && p.StockQuantity <= 0 {
		return false
	}
	if term := strings.ToLower(strings.TrimSpace(f.Search)); term != "" {
		if !strings.Contains(strings.ToLower(p.Name), term) && !strings.Contains(strings.ToLower(p.Description), term) {
			return false
		}
	}
	return true
}

func (m *MockStore) ListProducts(ctx context.Context, f models.ProductFilter) ([]models.Product, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.check("ListProducts"); err != nil {
		return nil, 0, err
	}
	matched := []models.Product{}
	for _, p := range m.products {
		if m.productMatches(p, f) {
			matched = append(matched, *p)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })
	return paginate(matched, f.Page, f.Limit), len(matched), nil
}

func paginate[T any](rows []T, page, limit int) []T {
	page, limit = models.NormalizePage(page, limit)
	start := models.Offset(page, limit)
	if start >= len(rows) {
		return []T{}
	}
	end := start + limit
	if end > len(rows) {
		end = len(rows)
	}
	return rows[start:end]
}

func (m *MockStore) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.check("GetProduct"); err != nil {
		return nil, err
	}
	p, ok := m.products[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *MockStore) GetProducts(ctx context.Context, ids []string, forUpdate bool) ([]models.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.check("GetProducts"); err != nil {
		return nil, err
	}
	products := []models.Product{}
	for _, id := range ids {
		if p, ok := m.products[id]; ok {
			products = append(products, *p)
		}
	}
	sort.Slice(products, func(i, j int) bool { return products[i].ID < products[j].ID })
	return products, nil
}

func (m *MockStore) CreateProduct(ctx context.Context, p *models.Product) error {
	if err := requireElevated(ctx); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check("CreateProduct"); err != nil {
		return err
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.Specifications == nil {
		p.Specifications = models.JSONMap{}
	}
	p.CreatedAt = m.now()
	p.UpdatedAt = p.CreatedAt
	cp := *p
	m.products[p.ID] = &cp
	return nil
}

func (m *MockStore) UpdateProduct(ctx context.Context, id string, u models.ProductUpdate) (*models.Product, error) {
	if err := requireElevated(ctx); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check("UpdateProduct"); err != nil {
		return nil, err
	}
	p, ok := m.products[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	if u.Name != nil {
		p.Name = *u.Name
	}
	if u.Description != nil {
		p.Description = *u.Description
	}
	if u.Price != nil {
		p.Price = *u.Price
	}
	if u.StockQuantity != nil {
		p.StockQuantity = *u.StockQuantity
	}
	if u.Category != nil {
		p.Category = *u.Category
	}
	if u.ImageURL != nil {
		p.ImageURL = *u.ImageURL
	}
	if u.Specifications != nil {
		p.Specifications = u.Specifications
	}
	if u.IsActive != nil {
		p.IsActive = *u.IsActive
	}
	p.UpdatedAt = m.now()
	cp := *p
	return &cp, nil
}

func (m *MockStore) CheckAvailability(ctx context.Context, productID string, quantity int) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.check("CheckAvailability"); err != nil {
		return false, err
	}
	p, ok := m.products[productID]
	return ok && p.IsActive && p.StockQuantity >= quantity, nil
}

func (m *MockStore) AdjustStock(ctx context.Context, productID string, delta int) (int, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check("AdjustStock"); err != nil {
		return 0, 0, err
	}
	p, ok := m.products[productID]
	if !ok {
		return 0, 0, store.ErrNotFound
	}
	if p.StockQuantity+delta < 0 {
		return 0, 0, store.ErrInsufficientStock
	}
	prev := p.StockQuantity
	p.StockQuantity += delta
	p.UpdatedAt = m.now()
	return prev, p.StockQuantity, nil
}

// ---- inventory

func (m *MockStore) InsertStockMovement(ctx context.Context, mv *models.StockMovement) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check("InsertStockMovement"); err != nil {
		return err
	}
	if mv.ID == "" {
		mv.ID = uuid.NewString()
	}
	mv.CreatedAt = m.now()
	m.movements = append(m.movements, *mv)
	return nil
}

func (m *MockStore) ListStockMovements(ctx context.Context, productID string, limit int) ([]models.StockMovement, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.check("ListStockMovements"); err != nil {
		return nil, err
	}
	out := []models.StockMovement{}
	for i := len(m.movements) - 1; i >= 0 && len(out) < limit; i-- {
		if productID == "" || m.movements[i].ProductID == productID {
			out = append(out, m.movements[i])
		}
	}
	return out, nil
}

func (m *MockStore) soldFor(productID string) (int, decimal.Decimal) {
	sold, revenue := 0, decimal.Zero
	for orderID, items := range m.orderItems {
		if o, ok := m.orders[orderID]; !ok || o.Status == models.OrderCancelled {
			continue
		}
		for _, it := range items {
			if it.ProductID == productID {
				sold += it.Quantity
				revenue = revenue.Add(it.Subtotal)
			}
		}
	}
	return sold, revenue
}

func (m *MockStore) InventoryReport(ctx context.Context) ([]models.InventoryRow, error) {
	if err := requireElevated(ctx); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.check("InventoryReport"); err != nil {
		return nil, err
	}
	rows := []models.InventoryRow{}
	for _, p := range m.products {
		sold, revenue := m.soldFor(p.ID)
		rows = append(rows, models.InventoryRow{
			ProductID:     p.ID,
			Name:          p.Name,
			Category:      p.Category,
			Price:         p.Price,
			StockQuantity: p.StockQuantity,
			IsActive:      p.IsActive,
			TotalSold:     sold,
			Revenue:       revenue,
		})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].TotalSold != rows[j].TotalSold {
			return rows[i].TotalSold > rows[j].TotalSold
		}
		return rows[i].Name < rows[j].Name
	})
	return rows, nil
}

func (m *MockStore) LowStockProducts(ctx context.Context, threshold int) ([]models.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.check("LowStockProducts"); err != nil {
		return nil, err
	}
	out := []models.Product{}
	for _, p := range m.products {
		if p.IsActive && p.StockQuantity <= threshold {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StockQuantity != out[j].StockQuantity {
			return out[i].StockQuantity < out[j].StockQuantity
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

func (m *MockStore) CategorySummary(ctx context.Context) ([]models.CategorySummary, error) {
	if err := requireElevated(ctx); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.check("CategorySummary"); err != nil {
		return nil, err
	}
	byCat := map[models.Category]*models.CategorySummary{}
	priceSum := map[models.Category]decimal.Decimal{}
	for _, p := range m.products {
		if !p.IsActive {
			continue
		}
		s, ok := byCat[p.Category]
		if !ok {
			s = &models.CategorySummary{Category: p.Category}
			byCat[p.Category] = s
		}
		s.ProductCount++
		s.TotalStock += p.StockQuantity
		s.InventoryValue = s.InventoryValue.Add(p.Price.Mul(decimal.NewFromInt(int64(p.StockQuantity))))
		priceSum[p.Category] = priceSum[p.Category].Add(p.Price)
	}
	out := []models.CategorySummary{}
	for cat, s := range byCat {
		s.AveragePrice = priceSum[cat].Div(decimal.NewFromInt(int64(s.ProductCount))).Round(2)
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Category < out[j].Category })
	return out, nil
}

// ---- cart

func (m *MockStore) ListCartLines(ctx context.Context, userID string) ([]models.CartLine, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.check("ListCartLines"); err != nil {
		return nil, err
	}
	lines := []models.CartLine{}
	for _, item := range m.cart {
		if item.UserID != userID {
			continue
		}
		p, ok := m.products[item.ProductID]
		if !ok {
			continue
		}
		lines = append(lines, models.CartLine{
			CartItem:      *item,
			ProductName:   p.Name,
			Price:         p.Price,
			ImageURL:      p.ImageURL,
			StockQuantity: p.StockQuantity,
			IsActive:      p.IsActive,
		})
	}
	sort.Slice(lines, func(i, j int) bool { return lines[i].CreatedAt.After(lines[j].CreatedAt) })
	return lines, nil
}

func (m *MockStore) GetCartItem(ctx context.Context, userID, itemID string) (*models.CartItem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.check("GetCartItem"); err != nil {
		return nil, err
	}
	item, ok := m.cart[itemID]
	if !ok || item.UserID != userID {
		return nil, store.ErrNotFound
	}
	cp := *item
	return &cp, nil
}

func (m *MockStore) FindCartItem(ctx context.Context, userID, productID string) (*models.CartItem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.check("FindCartItem"); err != nil {
		return nil, err
	}
	for _, item := range m.cart {
		if item.UserID == userID && item.ProductID == productID {
			cp := *item
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *MockStore) InsertCartItem(ctx context.Context, item *models.CartItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check("InsertCartItem"); err != nil {
		return err
	}
	for _, existing := range m.cart {
		if existing.UserID == item.UserID && existing.ProductID == item.ProductID {
			return store.ErrDuplicate
		}
	}
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	item.CreatedAt = m.now()
	item.UpdatedAt = item.CreatedAt
	cp := *item
	m.cart[item.ID] = &cp
	return nil
}

func (m *MockStore) UpdateCartItemQuantity(ctx context.Context, userID, itemID string, quantity int) (*models.CartItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check("UpdateCartItemQuantity"); err != nil {
		return nil, err
	}
	item, ok := m.cart[itemID]
	if !ok || item.UserID != userID {
		return nil, store.ErrNotFound
	}
	item.Quantity = quantity
	item.UpdatedAt = m.now()
	cp := *item
	return &cp, nil
}

func (m *MockStore) DeleteCartItem(ctx context.Context, userID, itemID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check("DeleteCartItem"); err != nil {
		return err
	}
	item, ok := m.cart[itemID]
	if !ok || item.UserID != userID {
		return store.ErrNotFound
	}
	delete(m.cart, itemID)
	return nil
}

func (m *MockStore) ClearCart(ctx context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check("ClearCart"); err != nil {
		return err
	}
	for id, item := range m.cart {
		if item.UserID == userID {
			delete(m.cart, id)
		}
	}
	return nil
}

// ---- orders

func (m *MockStore) InsertOrder(ctx context.Context, o *models.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check("InsertOrder"); err != nil {
		return err
	}
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	o.CreatedAt = m.now()
	o.UpdatedAt = o.CreatedAt
	cp := *o
	m.orders[o.ID] = &cp
	return nil
}

func (m *MockStore) InsertOrderItems(ctx context.Context, items []models.OrderItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check("InsertOrderItems"); err != nil {
		return err
	}
	for i := range items {
		it := &items[i]
		if it.ID == "" {
			it.ID = uuid.NewString()
		}
		it.Subtotal = it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity)))
		it.CreatedAt = m.now()
		m.orderItems[it.OrderID] = append(m.orderItems[it.OrderID], *it)
	}
	return nil
}

func (m *MockStore) RecalculateOrderTotal(ctx context.Context, orderID string) (decimal.Decimal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check("RecalculateOrderTotal"); err != nil {
		return decimal.Zero, err
	}
	o, ok := m.orders[orderID]
	if !ok {
		return decimal.Zero, store.ErrNotFound
	}
	total := decimal.Zero
	for _, it := range m.orderItems[orderID] {
		total = total.Add(it.Subtotal)
	}
	o.TotalAmount = total
	o.UpdatedAt = m.now()
	return total, nil
}

func (m *MockStore) GetOrder(ctx context.Context, id string) (*models.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.check("GetOrder"); err != nil {
		return nil, err
	}
	o, ok := m.orders[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *o
	return &cp, nil
}

// LockOrder reads like GetOrder; InTx already runs one transaction at a time.
func (m *MockStore) LockOrder(ctx context.Context, id string) (*models.Order, error) {
	return m.GetOrder(ctx, id)
}

func (m *MockStore) ListOrderItems(ctx context.Context, orderID string) ([]models.OrderItem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.check("ListOrderItems"); err != nil {
		return nil, err
	}
	items := []models.OrderItem{}
	for _, it := range m.orderItems[orderID] {
		if p, ok := m.products[it.ProductID]; ok {
			it.ProductName = p.Name
		}
		items = append(items, it)
	}
	return items, nil
}

func orderMatches(o *models.Order, f models.OrderFilter) bool {
	if f.UserID != "" && o.UserID != f.UserID {
		return false
	}
	if f.Status != "" && o.Status != f.Status {
		return false
	}
	if f.StartDate != nil && o.CreatedAt.Before(*f.StartDate) {
		return false
	}
	if f.EndDate != nil && o.CreatedAt.After(*f.EndDate) {
		return false
	}
	return true
}

func (m *MockStore) ListOrders(ctx context.Context, f models.OrderFilter) ([]models.Order, int, error) {
	if f.UserID == "" {
		if err := requireElevated(ctx); err != nil {
			return nil, 0, err
		}
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.check("ListOrders"); err != nil {
		return nil, 0, err
	}
	matched := []models.Order{}
	for _, o := range m.orders {
		if orderMatches(o, f) {
			matched = append(matched, *o)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })
	return paginate(matched, f.Page, f.Limit), len(matched), nil
}

func (m *MockStore) UpdateOrderStatus(ctx context.Context, id string, from, to models.OrderStatus) (*models.Order, error) {
	if err := requireElevated(ctx); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check("UpdateOrderStatus"); err != nil {
		return nil, err
	}
	o, ok := m.orders[id]
	if !ok || o.Status != from {
		return nil, store.ErrConflict
	}
	o.Status = to
	o.UpdatedAt = m.now()
	cp := *o
	return &cp, nil
}

func (m *MockStore) ExportOrders(ctx context.Context, f models.OrderFilter) ([]models.OrderExportRow, error) {
	if err := requireElevated(ctx); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.check("ExportOrders"); err != nil {
		return nil, err
	}
	rows := []models.OrderExportRow{}
	for _, o := range m.orders {
		if !orderMatches(o, f) {
			continue
		}
		row := models.OrderExportRow{
			OrderID:         o.ID,
			Status:          o.Status,
			TotalAmount:     o.TotalAmount,
			CreatedAt:       o.CreatedAt,
			ShippingAddress: o.ShippingAddress,
			ItemCount:       len(m.orderItems[o.ID]),
		}
		if u, ok := m.users[o.UserID]; ok {
			row.CustomerName = u.FullName
			row.CustomerEmail = u.Email
		}
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].CreatedAt.After(rows[j].CreatedAt) })
	return rows, nil
}

func (m *MockStore) SalesDashboard(ctx context.Context, start, end *time.Time, limit int) ([]models.SalesDay, error) {
	if err := requireElevated(ctx); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.check("SalesDashboard"); err != nil {
		return nil, err
	}
	byDay := map[time.Time]*models.SalesDay{}
	for _, o := range m.orders {
		if o.Status == models.OrderCancelled || !orderMatches(o, models.OrderFilter{StartDate: start, EndDate: end}) {
			continue
		}
		day := o.CreatedAt.Truncate(24 * time.Hour)
		d, ok := byDay[day]
		if !ok {
			d = &models.SalesDay{SaleDate: day}
			byDay[day] = d
		}
		d.OrdersCount++
		for _, it := range m.orderItems[o.ID] {
			d.Revenue = d.Revenue.Add(it.Subtotal)
			d.ItemsSold += it.Quantity
		}
	}
	out := []models.SalesDay{}
	for _, d := range byDay {
		d.AverageOrderValue = d.Revenue.Div(decimal.NewFromInt(int64(d.OrdersCount)))
		out = append(out, *d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SaleDate.After(out[j].SaleDate) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MockStore) CustomerHistory(ctx context.Context) ([]models.CustomerHistory, error) {
	if err := requireElevated(ctx); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.check("CustomerHistory"); err != nil {
		return nil, err
	}
	out := []models.CustomerHistory{}
	for _, u := range m.users {
		if u.Role != models.RoleCustomer {
			continue
		}
		h := models.CustomerHistory{UserID: u.ID, Email: u.Email, FullName: u.FullName}
		for _, o := range m.orders {
			if o.UserID != u.ID {
				continue
			}
			h.TotalOrders++
			if o.Status != models.OrderCancelled {
				h.TotalSpent = h.TotalSpent.Add(o.TotalAmount)
			}
			if h.LastOrderAt == nil || o.CreatedAt.After(*h.LastOrderAt) {
				at := o.CreatedAt
				h.LastOrderAt = &at
			}
		}
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].TotalSpent.Equal(out[j].TotalSpent) {
			return out[i].TotalSpent.GreaterThan(out[j].TotalSpent)
		}
		return out[i].Email < out[j].Email
	})
	return out, nil
}

// Counts for assertions.

func (m *MockStore) OrderCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.orders)
}

func (m *MockStore) OrderItemCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, items := range m.orderItems {
		n += len(items)
	}
	return n
}

var _ store.Store = (*MockStore)(nil)
