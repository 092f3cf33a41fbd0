package models

// All lists every model for schema migration, parents before children.
func All() []interface{} {
	return []interface{}{
		&Unit{},
		&Material{},
		&Supplier{},
		&Warehouse{},
		&Machine{},
		&Product{},
		&Basket{},
		&PurchaseOrder{},
		&PurchaseOrderDetail{},
		&ImportDeclaration{},
		&ImportDeclarationDetail{},
		&MaterialReceipt{},
		&MaterialReceiptDetail{},
		&Batch{},
		&IQCResult{},
		&InventoryStock{},
		&MaterialExport{},
		&MaterialExportDetail{},
		&WeavingBasketTicket{},
		&WeavingTicketYarn{},
		&BOMHeader{},
		&BOMDetail{},
		&AuditLog{},
	}
}
