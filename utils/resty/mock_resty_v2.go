package resty

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-resty/resty/v2"
)

var ErrMockNotFound = errors.New("mock not found for the requested method and url")

type MockFuncResponse struct {
	Request     *resty.Request
	RawResponse *http.Response
	Body        any
}

type MockFunc struct {
	Method     string
	Path       string
	ResultBody func(header map[string]string, requestBody any, param ...QueryParam) (MockFuncResponse, error)
}

type mockRestyClient struct {
	mocks map[string]map[string]MockFunc
}

type mockReadyRestyReq struct {
	ctx    context.Context
	mocks  map[string]map[string]MockFunc
	body   any
	header map[string]string
}

func (client *mockRestyClient) MakeRequest(ctx context.Context, body any, header map[string]string, contentType ...string) ReadyRestyReq {
	return &mockReadyRestyReq{ctx: ctx, mocks: client.mocks, header: header, body: body}
}

func (m *mockReadyRestyReq) Get(url string, queryParams ...QueryParam) (*resty.Response, error) {
	return m.dispatch(http.MethodGet, url, queryParams...)
}

func (m *mockReadyRestyReq) Post(url string, queryParams ...QueryParam) (*resty.Response, error) {
	return m.dispatch(http.MethodPost, url, queryParams...)
}

func (m *mockReadyRestyReq) dispatch(method, url string, queryParams ...QueryParam) (*resty.Response, error) {
	if m.ctx != nil {
		if err := m.ctx.Err(); err != nil {
			return nil, err
		}
	}
	mockFunc, ok := m.mocks[method][url]
	if !ok {
		return nil, ErrMockNotFound
	}

	resultBody, givenError := mockFunc.ResultBody(m.header, m.body, queryParams...)
	resultResponse, createErr := CreateMockResponse(resultBody, givenError)
	if createErr != nil {
		return nil, createErr
	}
	if givenError != nil {
		return resultResponse, givenError
	}
	return resultResponse, nil
}

func CreateMockResponse(givenBody MockFuncResponse, givenError error) (*resty.Response, error) {
	var request *resty.Request
	if givenBody.Request == nil {
		request = &resty.Request{}
	} else {
		request = givenBody.Request
	}
	request.Error = givenError

	byteGivenBody, marshalErr := json.Marshal(givenBody.Body)
	if marshalErr != nil {
		return nil, marshalErr
	}

	statusCode := http.StatusOK
	var header http.Header
	if givenBody.RawResponse != nil {
		statusCode = givenBody.RawResponse.StatusCode
		header = givenBody.RawResponse.Header
	}

	rawResponse := &http.Response{
		Status:     http.StatusText(statusCode),
		StatusCode: statusCode,
		Body:       io.NopCloser(bytes.NewReader(byteGivenBody)),
		Header:     header,
	}
	restyResp := &resty.Response{
		RawResponse: rawResponse,
		Request:     request,
	}
	restyResp.SetBody(byteGivenBody)
	return restyResp, nil
}
