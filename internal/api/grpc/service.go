// Copyright 2026 fanjia1024
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package grpc 提供 gRPC 健康检查服务，供负载均衡与编排系统探活；
// 每个已注册工具作为一个独立 service 名上报，便于按工具观察可用性。
package grpc

import (
	"fmt"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName 研究服务整体的健康检查名
const ServiceName = "athena.research"

// Server gRPC 服务端，持有健康状态
type Server struct {
	health *health.Server
	srv    *grpc.Server
	lis    net.Listener
}

// NewServer tools 为已注册的工具名，初始状态均为 SERVING
func NewServer(tools []string) *Server {
	hs := health.NewServer()
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	for _, name := range tools {
		hs.SetServingStatus("tool/"+name, healthpb.HealthCheckResponse_SERVING)
	}
	return &Server{health: hs}
}

// Register 注册健康服务到 grpc.Server
func (s *Server) Register(grpcServer *grpc.Server) {
	healthpb.RegisterHealthServer(grpcServer, s.health)
}

// SetToolServing 更新单个工具的状态
func (s *Server) SetToolServing(name string, serving bool) {
	st := healthpb.HealthCheckResponse_SERVING
	if !serving {
		st = healthpb.HealthCheckResponse_NOT_SERVING
	}
	s.health.SetServingStatus("tool/"+name, st)
}

// Start 在 port 上监听并在 goroutine 中 Serve
func (s *Server) Start(port int) error {
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return err
	}
	s.srv = grpc.NewServer()
	s.Register(s.srv)
	s.lis = lis
	go func() {
		_ = s.srv.Serve(lis)
	}()
	return nil
}

// Addr 实际监听地址（port 为 0 时用于获取随机端口）
func (s *Server) Addr() net.Addr {
	if s.lis == nil {
		return nil
	}
	return s.lis.Addr()
}

// GracefulStop 先把所有状态置为 NOT_SERVING 再停止
func (s *Server) GracefulStop() {
	s.health.Shutdown()
	if s.srv != nil {
		s.srv.GracefulStop()
	}
}
