package scraper

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/maltedev/outlet-scraper/internal/charset"
	"github.com/maltedev/outlet-scraper/internal/events"
	"github.com/maltedev/outlet-scraper/internal/models"
	"github.com/maltedev/outlet-scraper/internal/parser"
	"github.com/maltedev/outlet-scraper/internal/storage"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/japanese"
)

const outletPage = `<html><head><meta charset="utf-8"></head><body>
<table>
<tr><th>価格</th><th>仕様</th><th>メモリ</th></tr>
<tr><td>¥59,800</td><td>Inspiron 15 3000 Core i3</td><td>4GB</td></tr>
<tr><td>お問い合わせ</td><td>XPS 13 Core i7</td><td>16GB</td></tr>
</table>
</body></html>`

type fakeSource struct {
	snap   *Snapshot
	err    error
	target string
	closed bool
}

func (f *fakeSource) Snapshot(_ context.Context, target, _ string) (*Snapshot, error) {
	f.target = target
	return f.snap, f.err
}

func (f *fakeSource) Close() error {
	f.closed = true
	return nil
}

type MockSink struct {
	mock.Mock
}

func (m *MockSink) Save(ctx context.Context, c *storage.Capture) error {
	return m.Called(ctx, c).Error(0)
}

func (m *MockSink) Close() error {
	return m.Called().Error(0)
}

type MockStreamClient struct {
	mock.Mock
}

func (m *MockStreamClient) XAdd(ctx context.Context, args *redis.XAddArgs) *redis.StringCmd {
	m.Called(ctx, args)
	cmd := redis.NewStringCmd(ctx)
	cmd.SetVal("1234567890-0")
	return cmd
}

func (m *MockStreamClient) Close() error {
	return m.Called().Error(0)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestService(opts ...Option) *Service {
	logger := quietLogger()
	return NewService(charset.NewNormalizer(logger), logger, opts...)
}

var wantRecord = models.Record{
	Price:          "¥59,800",
	Specifications: "Inspiron 15 3000 Core i3",
	Memory:         "4GB",
}

func TestCaptureExtractsAndStores(t *testing.T) {
	src := &fakeSource{snap: &Snapshot{HTML: outletPage, Screenshot: []byte("png")}}
	sink := new(MockSink)

	var stored *storage.Capture
	sink.On("Save", mock.Anything, mock.AnythingOfType("*storage.Capture")).
		Run(func(args mock.Arguments) { stored = args.Get(1).(*storage.Capture) }).
		Return(nil)

	svc := newTestService(WithSource(src), WithSink(sink))
	result, err := svc.Capture(context.Background(), CaptureRequest{
		Target:    "https://example.com/outlet",
		Selector:  "#main",
		Extractor: "Dell-Outlet",
	})
	require.NoError(t, err)
	sink.AssertExpectations(t)

	assert.Equal(t, "https://example.com/outlet", src.target)
	assert.Equal(t, []models.Record{wantRecord}, result.Records)
	assert.Equal(t, parser.DellOutletName, result.Run.Extractor)
	assert.Equal(t, 1, result.Run.RecordCount)
	_, err = uuid.Parse(result.Run.ID)
	assert.NoError(t, err)
	assert.False(t, result.Run.FinishedAt.Before(result.Run.StartedAt))

	require.NotNil(t, stored)
	assert.Equal(t, result.Run, stored.Run)
	assert.Equal(t, []byte("png"), stored.Screenshot)
	assert.Equal(t, outletPage, stored.HTML)
}

func TestCaptureUnknownExtractorWritesEmpty(t *testing.T) {
	for _, name := range []string{"", "amazon"} {
		t.Run(name, func(t *testing.T) {
			src := &fakeSource{snap: &Snapshot{HTML: outletPage}}
			sink := new(MockSink)
			sink.On("Save", mock.Anything, mock.Anything).Return(nil)

			result, err := newTestService(WithSource(src), WithSink(sink)).
				Capture(context.Background(), CaptureRequest{Target: "file:///tmp/x.html", Extractor: name})
			require.NoError(t, err)

			assert.NotNil(t, result.Records)
			assert.Empty(t, result.Records)
			assert.Empty(t, result.Run.Extractor)

			stored := sink.Calls[0].Arguments.Get(1).(*storage.Capture)
			assert.NotNil(t, stored.Records)
		})
	}
}

func TestCaptureErrors(t *testing.T) {
	_, err := newTestService(WithSource(&fakeSource{})).Capture(context.Background(), CaptureRequest{})
	assert.ErrorIs(t, err, ErrMissingTarget)

	_, err = newTestService().Capture(context.Background(), CaptureRequest{Target: "https://example.com"})
	assert.ErrorIs(t, err, ErrNoSource)

	boom := errors.New("navigation timeout")
	_, err = newTestService(WithSource(&fakeSource{err: boom})).
		Capture(context.Background(), CaptureRequest{Target: "https://example.com"})
	assert.ErrorIs(t, err, boom)
}

func TestCaptureSinkFailure(t *testing.T) {
	sink := new(MockSink)
	sink.On("Save", mock.Anything, mock.Anything).Return(errors.New("disk full"))

	result, err := newTestService(WithSource(&fakeSource{snap: &Snapshot{HTML: outletPage}}), WithSink(sink)).
		Capture(context.Background(), CaptureRequest{Target: "https://example.com", Extractor: "dell-outlet"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	require.NotNil(t, result)
	assert.Len(t, result.Records, 1)
}

func TestExtractShiftJIS(t *testing.T) {
	raw, err := japanese.ShiftJIS.NewEncoder().Bytes([]byte(
		`<html><head><meta http-equiv="Content-Type" content="text/html; charset=Shift_JIS"></head><body>` +
			`<table><tr><td>価格</td><td>仕様</td></tr>` +
			`<tr><td>￥59,800</td><td>Inspiron 15 3000 Core i3</td></tr></table></body></html>`))
	require.NoError(t, err)

	sink := new(MockSink)
	svc := newTestService(WithSink(sink))

	result, err := svc.Extract(context.Background(), ExtractRequest{
		Raw:       raw,
		PathHint:  "/archive/page.html",
		Extractor: "dell-outlet",
	})
	require.NoError(t, err)

	require.NotNil(t, result.Encoding)
	assert.Equal(t, charset.ShiftJIS, result.Encoding.Charset)
	assert.Equal(t, charset.SourceMeta, result.Encoding.Source)
	assert.Equal(t, charset.ShiftJIS, result.Run.Charset)
	assert.Equal(t, "/archive/page.html", result.Run.Target)
	assert.Equal(t, []models.Record{{Price: "￥59,800", Specifications: "Inspiron 15 3000 Core i3"}}, result.Records)
	sink.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestExtractPersist(t *testing.T) {
	sink := new(MockSink)
	sink.On("Save", mock.Anything, mock.Anything).Return(nil)

	result, err := newTestService(WithSink(sink)).Extract(context.Background(), ExtractRequest{
		Raw:       []byte(outletPage),
		Extractor: "dell-outlet",
		Persist:   true,
	})
	require.NoError(t, err)
	assert.Equal(t, []models.Record{wantRecord}, result.Records)

	stored := sink.Calls[0].Arguments.Get(1).(*storage.Capture)
	assert.Equal(t, result.Run.ID, stored.Run.ID)
	assert.Nil(t, stored.Screenshot)
}

func TestExtractErrors(t *testing.T) {
	svc := newTestService()

	_, err := svc.Extract(context.Background(), ExtractRequest{Raw: []byte(outletPage), Extractor: "nope"})
	assert.ErrorIs(t, err, ErrUnknownExtractor)

	_, err = svc.Extract(context.Background(), ExtractRequest{Extractor: "dell-outlet"})
	assert.ErrorIs(t, err, charset.ErrEmptyInput)
}

func TestServiceCustomRegistry(t *testing.T) {
	registry := parser.NewRegistry()
	registry.Register("other", func(logger *slog.Logger) parser.Extractor {
		return parser.NewDellOutletExtractor(logger)
	})

	svc := newTestService(WithRegistry(registry))
	assert.Equal(t, []string{"other"}, svc.Extractors())

	_, err := svc.Extract(context.Background(), ExtractRequest{Raw: []byte(outletPage), Extractor: "dell-outlet"})
	assert.ErrorIs(t, err, ErrUnknownExtractor)
}

func TestServiceClose(t *testing.T) {
	src := &fakeSource{}
	sink := new(MockSink)
	sink.On("Close").Return(nil)
	notifier := new(MockSink)
	notifier.On("Close").Return(nil)

	require.NoError(t, newTestService(WithSource(src), WithSink(sink), WithNotifier(notifier)).Close())
	assert.True(t, src.closed)
	sink.AssertExpectations(t)
	notifier.AssertExpectations(t)
}

func TestCaptureAnnouncesRunOnlyAfterStore(t *testing.T) {
	failing := new(MockSink)
	failing.On("Save", mock.Anything, mock.Anything).Return(errors.New("postgres down"))
	stored := new(MockSink)
	stored.On("Save", mock.Anything, mock.Anything).Return(nil)

	client := new(MockStreamClient)
	publisher := events.NewPublisher(client, "outlet:runs", quietLogger())

	svc := newTestService(
		WithSource(&fakeSource{snap: &Snapshot{HTML: outletPage}}),
		WithSink(storage.NewMultiSink(failing, stored)),
		WithNotifier(publisher),
	)
	_, err := svc.Capture(context.Background(), CaptureRequest{Target: "https://example.com", Extractor: "dell-outlet"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "postgres down")

	client.AssertNotCalled(t, "XAdd", mock.Anything, mock.Anything)
	stored.AssertExpectations(t)
}

func TestCaptureAnnouncesStoredRun(t *testing.T) {
	sink := new(MockSink)
	sink.On("Save", mock.Anything, mock.Anything).Return(nil)

	client := new(MockStreamClient)
	client.On("XAdd", mock.Anything, mock.Anything).Return()

	svc := newTestService(
		WithSource(&fakeSource{snap: &Snapshot{HTML: outletPage}}),
		WithSink(sink),
		WithNotifier(events.NewPublisher(client, "outlet:runs", quietLogger())),
	)
	result, err := svc.Capture(context.Background(), CaptureRequest{Target: "https://example.com", Extractor: "dell-outlet"})
	require.NoError(t, err)

	client.AssertNumberOfCalls(t, "XAdd", 1)
	args := client.Calls[0].Arguments.Get(1).(*redis.XAddArgs)
	assert.Equal(t, result.Run.ID, args.Values.(map[string]interface{})["run_id"])
}

func TestExtractWithoutPersistDoesNotAnnounce(t *testing.T) {
	notifier := new(MockSink)

	_, err := newTestService(WithNotifier(notifier)).Extract(context.Background(), ExtractRequest{
		Raw:       []byte(outletPage),
		Extractor: "dell-outlet",
	})
	require.NoError(t, err)
	notifier.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}
