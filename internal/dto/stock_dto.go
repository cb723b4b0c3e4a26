package dto

// ─── Request DTOs ────────────────────────────────────────────────────────────

type CompraRequest struct {
	ProductoID string `json:"producto_id" validate:"required,uuid"`
	SucursalID string `json:"sucursal_id" validate:"required,uuid"`
	Cantidad   int    `json:"cantidad"    validate:"required,min=1"`
	Motivo     string `json:"motivo"      validate:"max=200"`
}

// AjusteRequest applies a signed manual correction (merma, conteo, rotura).
type AjusteRequest struct {
	ProductoID string `json:"producto_id" validate:"required,uuid"`
	SucursalID string `json:"sucursal_id" validate:"required,uuid"`
	Delta      int    `json:"delta"       validate:"required,ne=0"`
	Motivo     string `json:"motivo"      validate:"required,min=3,max=200"`
}

type TransferenciaRequest struct {
	ProductoID        string `json:"producto_id"         validate:"required,uuid"`
	SucursalOrigenID  string `json:"sucursal_origen_id"  validate:"required,uuid"`
	SucursalDestinoID string `json:"sucursal_destino_id" validate:"required,uuid,nefield=SucursalOrigenID"`
	Cantidad          int    `json:"cantidad"            validate:"required,min=1"`
	Motivo            string `json:"motivo"              validate:"max=200"`
}

type LimitesRequest struct {
	ProductoID  string `json:"producto_id"  validate:"required,uuid"`
	SucursalID  string `json:"sucursal_id"  validate:"required,uuid"`
	StockMinimo int    `json:"stock_minimo" validate:"min=0"`
	StockMaximo int    `json:"stock_maximo" validate:"min=0"`
}

// MovimientoFilter is bound from query string of GET /v1/stock/movimientos.
type MovimientoFilter struct {
	SucursalID string `form:"sucursal_id" validate:"omitempty,uuid"`
	ProductoID string `form:"producto_id" validate:"omitempty,uuid"`
	Tipo       string `form:"tipo"        validate:"omitempty,oneof=venta compra ajuste transferencia reversion_cancelacion"`
	Desde      string `form:"desde"       validate:"omitempty,datetime=2006-01-02"`
	Hasta      string `form:"hasta"       validate:"omitempty,datetime=2006-01-02"`
	Page       int    `form:"page,default=1"    validate:"min=1"`
	Limit      int    `form:"limit,default=100" validate:"min=1,max=500"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type MutacionResponse struct {
	ProductoID    string `json:"producto_id"`
	SucursalID    string `json:"sucursal_id"`
	StockAnterior int    `json:"stock_anterior"`
	StockNuevo    int    `json:"stock_nuevo"`
}

type TransferenciaResponse struct {
	Origen  MutacionResponse `json:"origen"`
	Destino MutacionResponse `json:"destino"`
}

type StockSucursalResponse struct {
	ProductoID  string `json:"producto_id"`
	Producto    string `json:"producto"`
	SucursalID  string `json:"sucursal_id"`
	Cantidad    int    `json:"cantidad"`
	StockMinimo int    `json:"stock_minimo"`
	StockMaximo int    `json:"stock_maximo"`
	BajoMinimo  bool   `json:"bajo_minimo"`
	SobreMaximo bool   `json:"sobre_maximo"`
}

type StockPorSucursalItem struct {
	SucursalID string `json:"sucursal_id"`
	Sucursal   string `json:"sucursal"`
	Cantidad   int    `json:"cantidad"`
}

type StockGlobalResponse struct {
	ProductoID string                 `json:"producto_id"`
	Producto   string                 `json:"producto"`
	Total      int64                  `json:"total"`
	Sucursales []StockPorSucursalItem `json:"sucursales"`
}

type MovimientoResponse struct {
	ID            string  `json:"id"`
	ProductoID    string  `json:"producto_id"`
	Producto      string  `json:"producto"`
	SucursalID    string  `json:"sucursal_id"`
	Tipo          string  `json:"tipo"`
	Cantidad      int     `json:"cantidad"`
	StockAnterior int     `json:"stock_anterior"`
	StockNuevo    int     `json:"stock_nuevo"`
	UsuarioID     *string `json:"usuario_id"`
	Motivo        string  `json:"motivo"`
	ReferenciaID  *string `json:"referencia_id"`
	CreatedAt     string  `json:"created_at"`
}

type MovimientoListResponse struct {
	Data  []MovimientoResponse `json:"data"`
	Total int64                `json:"total"`
	Page  int                  `json:"page"`
	Limit int                  `json:"limit"`
}
