package rpc

import "github.com/jabolina/yail-go/pkg/yail/codec"

// Descriptor names one RPC within a service: a (name, type_name) pair
// where type_name is derived from the (Request, Response) pair (§3 "RPC
// type").
type Descriptor[Req, Res any] struct {
	Name      string
	ReqFacet  codec.Facet[Req]
	ResFacet  codec.Facet[Res]
}

// TypeName derives the RPC's wire type_name from its request/response
// facets.
func (d Descriptor[Req, Res]) TypeName() string {
	return d.ReqFacet.Name() + "->" + d.ResFacet.Name()
}

// New builds a Descriptor for name using the given request/response
// facets.
func New[Req, Res any](name string, reqFacet codec.Facet[Req], resFacet codec.Facet[Res]) Descriptor[Req, Res] {
	return Descriptor[Req, Res]{Name: name, ReqFacet: reqFacet, ResFacet: resFacet}
}
