package kafka

import (
	"context"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
)

type writerMock struct {
	mock.Mock
}

func (m *writerMock) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	return m.Called(ctx, msgs).Error(0)
}

type ProducerSuite struct {
	suite.Suite
	wm *writerMock
	p  *Producer
}

func (s *ProducerSuite) SetupTest() {
	s.wm = &writerMock{}
	s.p = newProducerWithWriter(s.wm)
}

func (s *ProducerSuite) TestPublish_KeyedJSONMessage() {
	s.wm.On("WriteMessages", mock.Anything, mock.MatchedBy(func(msgs []kafka.Message) bool {
		if len(msgs) != 1 {
			return false
		}
		m := msgs[0]
		return m.Topic == "ticket.events" &&
			string(m.Key) == "qr_1" &&
			string(m.Value) == `{"type":"record.created"}` &&
			len(m.Headers) == 1 && string(m.Headers[0].Value) == contentTypeJSON
	})).Return(nil).Once()

	s.Require().NoError(s.p.Publish(context.Background(), "ticket.events", []byte("qr_1"), []byte(`{"type":"record.created"}`)))
	s.wm.AssertExpectations(s.T())
}

func (s *ProducerSuite) TestPublish_ErrorNamesTopic() {
	s.wm.On("WriteMessages", mock.Anything, mock.Anything).Return(context.DeadlineExceeded).Once()

	err := s.p.Publish(context.Background(), "ticket.events", []byte("qr_1"), []byte("{}"))
	s.Require().ErrorIs(err, context.DeadlineExceeded)
	s.Require().Contains(err.Error(), "kafka publish to ticket.events")
}

func (s *ProducerSuite) TestClose() {
	s.Require().NoError(s.p.Close())
	s.Require().NoError(NewProducer([]string{"localhost:0"}).Close())
}

func (s *ProducerSuite) TestPublish_UnwrapsOriginal() {
	want := errors.New("leader not available")
	s.wm.On("WriteMessages", mock.Anything, mock.Anything).Return(want).Once()
	s.Require().ErrorIs(s.p.Publish(context.Background(), "t", nil, nil), want)
}

func TestProducerSuite(t *testing.T) {
	suite.Run(t, new(ProducerSuite))
}
