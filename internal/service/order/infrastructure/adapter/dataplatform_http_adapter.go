// internal/service/order/infrastructure/adapter/dataplatform_http_adapter.go
package adapter

import (
	"context"

	"commerce/internal/pkg/httpclient"
	"commerce/internal/service/order/domain"
)

// DataPlatformHTTPAdapter 实现 port.AnalyticsReporter，
// 把成交订单异步上报给数据平台的采集接口。
type DataPlatformHTTPAdapter struct {
	client     *httpclient.Client
	serviceURL string
}

func NewDataPlatformHTTPAdapter(client *httpclient.Client, serviceURL string) *DataPlatformHTTPAdapter {
	return &DataPlatformHTTPAdapter{client: client, serviceURL: serviceURL}
}

type orderReportPayload struct {
	OrderID     string `json:"orderId"`
	UserID      int64  `json:"userId"`
	FinalAmount int64  `json:"finalAmount"`
	ItemCount   int64  `json:"itemCount"`
}

func (a *DataPlatformHTTPAdapter) ReportOrderCompleted(ctx context.Context, order *domain.Order) error {
	return a.client.PostJSON(ctx, a.serviceURL, orderReportPayload{
		OrderID:     order.ID,
		UserID:      order.UserID,
		FinalAmount: order.FinalAmount,
		ItemCount:   order.TotalQuantity(),
	})
}
