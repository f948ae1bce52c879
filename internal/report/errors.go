package report

import (
	"errors"
	"net/http"
)

// ErrRecordNotFound is returned by repositories when no record has the id.
var ErrRecordNotFound = errors.New("report: record not found")

// AccessError is a terminal failure to show a report. Message is the text
// displayed to the viewer in place of the report.
type AccessError struct {
	Code    string
	Message string
	Status  int
}

func (e *AccessError) Error() string {
	return "report: " + e.Code
}

var (
	ErrMissingID    = &AccessError{Code: "missing_id", Message: "Không tìm thấy ID báo cáo.", Status: http.StatusNotFound}
	ErrNotFound     = &AccessError{Code: "not_found", Message: "Báo cáo không tồn tại hoặc đã bị xóa.", Status: http.StatusNotFound}
	ErrAccessDenied = &AccessError{Code: "access_denied", Message: "Truy cập trực tiếp qua liên kết không được phép. Vui lòng quét mã QR để xem báo cáo.", Status: http.StatusForbidden}
	ErrExpired      = &AccessError{Code: "expired", Message: "Liên kết báo cáo này đã hết hạn.", Status: http.StatusGone}
	ErrMalformed    = &AccessError{Code: "malformed", Message: "Lỗi định dạng dữ liệu báo cáo.", Status: http.StatusUnprocessableEntity}
	ErrUnavailable  = &AccessError{Code: "unavailable", Message: "Đã xảy ra lỗi khi tải báo cáo.", Status: http.StatusBadGateway}
)

// AsAccessError extracts the AccessError from err. Errors of any other kind
// are reported as ErrUnavailable.
func AsAccessError(err error) *AccessError {
	var ae *AccessError
	if errors.As(err, &ae) {
		return ae
	}
	return ErrUnavailable
}
