package grpc

import (
	"context"

	"github.com/DRSN-tech/dscommerce-backend/internal/usecase"
	"github.com/DRSN-tech/dscommerce-backend/pkg/e"
	"github.com/DRSN-tech/dscommerce-backend/pkg/logger"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	catalogServiceName     = "dscommerce.v1.CatalogService"
	getProductsInfoMethod  = "/" + catalogServiceName + "/GetProductsInfo"
	maxProductsInfoRequest = 100
)

// CatalogServer отдаёт другим сервисам сведения о товарах по их идентификаторам.
// Сообщения передаются как google.protobuf.Struct:
//
//	запрос:  {"ids": [1, 3]}
//	ответ:   {"products": [{"id", "name", "price", "imageUrl"}], "notFound": [ids]}
//
// price передаётся в центах.
type CatalogServer interface {
	GetProductsInfo(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

var catalogServiceDesc = grpc.ServiceDesc{
	ServiceName: catalogServiceName,
	HandlerType: (*CatalogServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "GetProductsInfo",
			Handler:    getProductsInfoHandler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "dscommerce/v1/catalog",
}

func RegisterCatalogServer(s grpc.ServiceRegistrar, srv CatalogServer) {
	s.RegisterService(&catalogServiceDesc, srv)
}

func getProductsInfoHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(CatalogServer).GetProductsInfo(ctx, in)
	}

	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: getProductsInfoMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(CatalogServer).GetProductsInfo(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

type CatalogService struct {
	prUC   usecase.ProductUC
	logger logger.Logger
}

func NewCatalogService(prUC usecase.ProductUC, logger logger.Logger) *CatalogService {
	return &CatalogService{prUC: prUC, logger: logger}
}

func (g *CatalogService) GetProductsInfo(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	const op = "grpc.GetProductsInfo"

	ids, err := idsFromRequest(req)
	if err != nil {
		return nil, GRPCErrorResponse(e.Wrap(op, err))
	}

	res, err := g.prUC.GetProductsInfo(ctx, usecase.NewGetProductsReq(ids))
	if err != nil {
		g.logger.Errorf(e.Wrap(op, err), "%s", op)
		return nil, GRPCErrorResponse(e.Wrap(op, err))
	}

	out, err := structpb.NewStruct(map[string]any{
		"products": toArrGRPCProduct(res.Products),
		"notFound": toAnyIDs(res.NotFoundProducts),
	})
	if err != nil {
		g.logger.Errorf(e.Wrap(op, err), "%s", op)
		return nil, GRPCErrorResponse(e.Wrap(op, err))
	}

	return out, nil
}

func idsFromRequest(req *structpb.Struct) ([]int64, error) {
	list := req.GetFields()["ids"].GetListValue()
	if list == nil || len(list.GetValues()) == 0 {
		return nil, e.Wrap("ids must be a non-empty list", e.ErrStatusBadRequest)
	}
	if len(list.GetValues()) > maxProductsInfoRequest {
		return nil, e.Wrap("too many ids", e.ErrStatusBadRequest)
	}

	ids := make([]int64, 0, len(list.GetValues()))
	for _, v := range list.GetValues() {
		n, ok := v.GetKind().(*structpb.Value_NumberValue)
		if !ok || n.NumberValue <= 0 || n.NumberValue != float64(int64(n.NumberValue)) {
			return nil, e.Wrap("ids must be positive integers", e.ErrStatusBadRequest)
		}
		ids = append(ids, int64(n.NumberValue))
	}

	return ids, nil
}

func toGRPCProduct(pr *usecase.ProductInfo) map[string]any {
	return map[string]any{
		"id":       pr.ID,
		"name":     pr.Name,
		"price":    pr.Price,
		"imageUrl": pr.ImageURL,
	}
}

func toArrGRPCProduct(prs []usecase.ProductInfo) []any {
	res := make([]any, len(prs))
	for i := range prs {
		res[i] = toGRPCProduct(&prs[i])
	}

	return res
}

func toAnyIDs(ids []int64) []any {
	res := make([]any, len(ids))
	for i, id := range ids {
		res[i] = id
	}

	return res
}
